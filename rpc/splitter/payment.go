package splitter

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// DefaultIteratorBatch is the number of items Balances requests per
// iterator traversal call.
const DefaultIteratorBatch = 100

// PaymentData returns data to be attached to the NEP-17 transfer into
// Splitter so that transferAmount is split between r1 and r2.
func PaymentData(transferAmount *big.Int, r1, r2 util.Uint160) []any {
	return []any{transferAmount, r1, r2}
}

// Split creates a transaction transferring attached amount of the token from
// the given account to Splitter with payment data asking to split
// transferAmount between r1 and r2. The transaction is signed and
// immediately sent to the network. Token must be the one Splitter accepts,
// otherwise the transaction fails.
func (c *Contract) Split(token, from util.Uint160, attached, transferAmount *big.Int, r1, r2 util.Uint160) (util.Uint256, uint32, error) {
	return nep17.New(c.actor, token).Transfer(from, c.hash, attached, PaymentData(transferAmount, r1, r2))
}

// Balances returns all ledger balances, including zero ones. It requires
// RPC server with iterator sessions enabled, items are fetched by batches
// of the given size (DefaultIteratorBatch if not positive).
func (c *ContractReader) Balances(batch int) (map[util.Uint160]*big.Int, error) {
	if batch <= 0 {
		batch = DefaultIteratorBatch
	}

	sess, iter, err := c.ListBalances()
	if err != nil {
		return nil, fmt.Errorf("open balance iterator: %w", err)
	}

	defer func() { _ = c.invoker.TerminateSession(sess) }()

	res := make(map[util.Uint160]*big.Int)
	for {
		items, err := c.invoker.TraverseIterator(sess, &iter, batch)
		if err != nil {
			return nil, fmt.Errorf("traverse balance iterator: %w", err)
		}

		for i := range items {
			acc, balance, err := ParseBalance(items[i])
			if err != nil {
				return nil, fmt.Errorf("balance item #%d: %w", i, err)
			}
			res[acc] = balance
		}

		if len(items) < batch {
			return res, nil
		}
	}
}

// ParseBalance decodes an item returned by listBalances iterator.
func ParseBalance(item stackitem.Item) (util.Uint160, *big.Int, error) {
	kv, ok := item.Value().([]stackitem.Item)
	if !ok || len(kv) != 2 {
		return util.Uint160{}, nil, errors.New("not a key-value pair")
	}

	acc, err := itemToUint160(kv[0])
	if err != nil {
		return util.Uint160{}, nil, fmt.Errorf("account: %w", err)
	}

	balance, err := kv[1].TryInteger()
	if err != nil {
		return util.Uint160{}, nil, fmt.Errorf("balance: %w", err)
	}

	return acc, balance, nil
}
