// Package ledger provides an off-chain model of Splitter ledger. It follows
// the contract step by step, so it can be used to predict results of
// invocations, to decode the contract storage and to check that a ledger
// restored from notifications matches the on-chain one.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/splitter-contract/contracts/splitter/splitterconst"
)

// Errors returned by the model. Texts equal failure messages of the contract.
var (
	ErrIncorrectCoin              = errors.New(splitterconst.ErrIncorrectCoin)
	ErrSenderHasZeroCoin          = errors.New(splitterconst.ErrSenderHasZeroCoin)
	ErrInvalidZeroAmount          = errors.New(splitterconst.ErrInvalidZeroAmount)
	ErrNegativeAmount             = errors.New(splitterconst.ErrNegativeAmount)
	ErrNotEnoughCoin              = errors.New(splitterconst.ErrNotEnoughCoin)
	ErrSentLessThanFee            = errors.New(splitterconst.ErrSentLessThanFee)
	ErrRecipientPaidZeroOrOneCoin = errors.New(splitterconst.ErrRecipientPaidZeroOrOneCoin)
	ErrNotEnoughBalance           = errors.New(splitterconst.ErrNotEnoughBalance)
	ErrInvalidWithdrawAmount      = errors.New(splitterconst.ErrInvalidWithdrawAmount)
	ErrNegativeFee                = errors.New(splitterconst.ErrNegativeFee)

	// ErrOverflow is returned when a value exceeds NeoVM integer limits.
	ErrOverflow = errors.New("integer overflow")
)

// Config is an immutable ledger configuration.
type Config struct {
	Owner util.Uint160
	Token util.Uint160
	// Fee charged per transfer, nil if the ledger charges no fee.
	Fee *big.Int
}

// Payment describes a NEP-17 transfer into the ledger.
type Payment struct {
	// Token is the contract the payment comes from.
	Token    util.Uint160
	Sender   util.Uint160
	Attached *big.Int

	Amount     *big.Int
	Recipient1 util.Uint160
	Recipient2 util.Uint160
}

// Receipt describes the effect of a successful transfer.
type Receipt struct {
	Share   *big.Int
	Fee     *big.Int
	Charged *big.Int
}

type credit struct {
	acc    util.Uint160
	amount *big.Int
}

// Ledger is a Splitter ledger state. Not safe for concurrent use.
type Ledger struct {
	cfg      Config
	balances map[util.Uint160]*big.Int
}

// New returns an empty ledger with the given configuration.
func New(cfg Config) (*Ledger, error) {
	if cfg.Fee != nil && cfg.Fee.Sign() < 0 {
		return nil, ErrNegativeFee
	}

	return &Ledger{
		cfg:      cfg,
		balances: make(map[util.Uint160]*big.Int),
	}, nil
}

// Config returns ledger configuration.
func (l *Ledger) Config() Config {
	return l.cfg
}

// FeeEnabled checks whether transfers are charged with a fee.
func (l *Ledger) FeeEnabled() bool {
	return l.cfg.Fee != nil
}

func (l *Ledger) fee() *big.Int {
	if l.cfg.Fee == nil {
		return new(big.Int)
	}
	return l.cfg.Fee
}

// Transfer splits the payment. The ledger is not changed on error.
func (l *Ledger) Transfer(p Payment) (Receipt, error) {
	if !p.Token.Equals(l.cfg.Token) {
		return Receipt{}, ErrIncorrectCoin
	}

	if p.Amount.Sign() < 0 {
		return Receipt{}, ErrNegativeAmount
	}

	fee := l.fee()
	if l.FeeEnabled() {
		if fee.Cmp(p.Amount) > 0 {
			return Receipt{}, ErrSentLessThanFee
		}
	} else {
		if p.Attached.Sign() == 0 {
			return Receipt{}, ErrSenderHasZeroCoin
		}
		if p.Amount.Sign() == 0 {
			return Receipt{}, ErrInvalidZeroAmount
		}
	}

	if p.Amount.Cmp(p.Attached) > 0 {
		return Receipt{}, ErrNotEnoughCoin
	}

	share := new(big.Int).Sub(p.Amount, fee)
	share.Rsh(share, 1)
	if l.FeeEnabled() && share.Sign() == 0 {
		return Receipt{}, ErrRecipientPaidZeroOrOneCoin
	}

	charged := new(big.Int).Lsh(share, 1)
	charged.Add(charged, fee)

	credits := []credit{
		{p.Recipient1, share},
		{p.Recipient2, share},
	}
	if l.FeeEnabled() {
		credits = append(credits, credit{l.cfg.Owner, fee})
	}

	if err := l.applyCredits(credits); err != nil {
		return Receipt{}, err
	}

	return Receipt{
		Share:   share,
		Fee:     new(big.Int).Set(fee),
		Charged: charged,
	}, nil
}

// Withdraw debits the user balance. The whole balance can be withdrawn.
func (l *Ledger) Withdraw(user util.Uint160, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrInvalidWithdrawAmount
	}

	balance := l.BalanceOf(user)
	if balance.Cmp(amount) < 0 {
		return ErrNotEnoughBalance
	}

	l.balances[user] = new(big.Int).Sub(balance, amount)
	return nil
}

// BalanceOf returns balance of the account, 0 if it was never credited.
func (l *Ledger) BalanceOf(acc util.Uint160) *big.Int {
	v, ok := l.balances[acc]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Balances returns a copy of all balance entries.
func (l *Ledger) Balances() map[util.Uint160]*big.Int {
	res := make(map[util.Uint160]*big.Int, len(l.balances))
	for acc, v := range l.balances {
		res[acc] = new(big.Int).Set(v)
	}
	return res
}

// Accounts returns all known accounts in ascending order.
func (l *Ledger) Accounts() []util.Uint160 {
	res := make([]util.Uint160, 0, len(l.balances))
	for acc := range l.balances {
		res = append(res, acc)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Less(res[j]) })
	return res
}

// Total returns the sum of all balances.
func (l *Ledger) Total() *big.Int {
	res := new(big.Int)
	for _, v := range l.balances {
		res.Add(res, v)
	}
	return res
}

// applyCredits applies all credits or none of them. Accounts may coincide, so new
// balances are computed on a copy.
func (l *Ledger) applyCredits(credits []credit) error {
	updated := make(map[util.Uint160]*big.Int, len(credits))
	for _, c := range credits {
		cur, ok := updated[c.acc]
		if !ok {
			cur = l.BalanceOf(c.acc)
		}

		next := new(big.Int).Add(cur, c.amount)
		if err := checkBounds(next); err != nil {
			return fmt.Errorf("credit %s: %w", c.acc.StringLE(), err)
		}
		updated[c.acc] = next
	}

	for acc, v := range updated {
		l.balances[acc] = v
	}

	return nil
}

func checkBounds(v *big.Int) error {
	if len(bigint.ToBytes(v))*8 > stackitem.MaxBigIntegerSizeBits {
		return ErrOverflow
	}
	return nil
}
