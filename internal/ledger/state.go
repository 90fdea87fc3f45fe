package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/splitter-contract/contracts/splitter/splitterconst"
)

// ErrUnderfunded is returned when the contract holds less tokens than the
// ledger owes.
var ErrUnderfunded = errors.New("contract holds less than ledger balances")

// StorageDecoder restores Ledger from raw contract storage items.
type StorageDecoder struct {
	owner    *util.Uint160
	token    *util.Uint160
	fee      *big.Int
	balances map[util.Uint160]*big.Int
}

// Put decodes one storage item. Unknown keys are rejected.
func (d *StorageDecoder) Put(key, value []byte) error {
	if len(key) == 0 {
		return errors.New("empty storage key")
	}

	switch {
	case string(key) == splitterconst.OwnerKey:
		h, err := util.Uint160DecodeBytesBE(value)
		if err != nil {
			return fmt.Errorf("decode owner: %w", err)
		}
		d.owner = &h
	case string(key) == splitterconst.TokenKey:
		h, err := util.Uint160DecodeBytesBE(value)
		if err != nil {
			return fmt.Errorf("decode token: %w", err)
		}
		d.token = &h
	case string(key) == splitterconst.FeeKey:
		d.fee = bigint.FromBytes(value)
	case key[0] == splitterconst.BalancePrefix:
		acc, err := util.Uint160DecodeBytesBE(key[1:])
		if err != nil {
			return fmt.Errorf("decode balance key: %w", err)
		}

		v := bigint.FromBytes(value)
		if v.Sign() < 0 {
			return fmt.Errorf("negative balance of %s", acc.StringLE())
		}

		if d.balances == nil {
			d.balances = make(map[util.Uint160]*big.Int)
		}
		d.balances[acc] = v
	default:
		return fmt.Errorf("unexpected storage key %x", key)
	}

	return nil
}

// Ledger returns the decoded ledger.
func (d *StorageDecoder) Ledger() (*Ledger, error) {
	if d.owner == nil {
		return nil, errors.New("missing owner")
	}
	if d.token == nil {
		return nil, errors.New("missing token")
	}

	return Restore(Config{Owner: *d.owner, Token: *d.token, Fee: d.fee}, d.balances)
}

// Restore returns ledger with the given configuration and balances.
func Restore(cfg Config, balances map[util.Uint160]*big.Int) (*Ledger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	for acc, v := range balances {
		if v.Sign() < 0 {
			return nil, fmt.Errorf("negative balance of %s", acc.StringLE())
		}
		l.balances[acc] = new(big.Int).Set(v)
	}

	return l, nil
}

// ApplySplit credits the ledger as stated in Split notification.
func (l *Ledger) ApplySplit(r1, r2, owner util.Uint160, share, fee *big.Int) error {
	if !owner.Equals(l.cfg.Owner) {
		return fmt.Errorf("notification owner %s differs from ledger owner %s", owner.StringLE(), l.cfg.Owner.StringLE())
	}
	if fee.Cmp(l.fee()) != 0 {
		return fmt.Errorf("notification fee %s differs from ledger fee %s", fee, l.fee())
	}

	credits := []credit{{r1, share}, {r2, share}}
	if l.FeeEnabled() {
		credits = append(credits, credit{owner, fee})
	}

	return l.applyCredits(credits)
}

// ApplyWithdraw debits the ledger as stated in Withdraw notification.
func (l *Ledger) ApplyWithdraw(user util.Uint160, amount *big.Int) error {
	return l.Withdraw(user, amount)
}

// CheckHeld compares the amount of tokens held by the contract account with
// the ledger. It returns the part of held tokens not credited to anyone.
func (l *Ledger) CheckHeld(held *big.Int) (*big.Int, error) {
	total := l.Total()

	surplus := new(big.Int).Sub(held, total)
	if surplus.Sign() < 0 {
		return nil, fmt.Errorf("%w: held %s, owed %s", ErrUnderfunded, held, total)
	}

	return surplus, nil
}

// Mismatch describes an account which balance differs between two ledgers.
type Mismatch struct {
	Account  util.Uint160
	Expected *big.Int
	Actual   *big.Int
}

// Compare returns accounts which balances differ between the ledgers. Zero
// balance and missing balance are equal.
func Compare(expected, actual *Ledger) []Mismatch {
	seen := make(map[util.Uint160]struct{})
	var res []Mismatch

	for _, l := range []*Ledger{expected, actual} {
		for _, acc := range l.Accounts() {
			if _, ok := seen[acc]; ok {
				continue
			}
			seen[acc] = struct{}{}

			e, a := expected.BalanceOf(acc), actual.BalanceOf(acc)
			if e.Cmp(a) != 0 {
				res = append(res, Mismatch{Account: acc, Expected: e, Actual: a})
			}
		}
	}

	return res
}
