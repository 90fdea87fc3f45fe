package ledger

import (
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/splitter-contract/contracts/splitter/splitterconst"
	"github.com/stretchr/testify/require"
)

var (
	owner  = util.Uint160{0xaa}
	token  = util.Uint160{0xbb}
	sender = util.Uint160{0x01}
	r1     = util.Uint160{0x02}
	r2     = util.Uint160{0x03}
)

func newLedger(t *testing.T, fee ...int64) *Ledger {
	cfg := Config{Owner: owner, Token: token}
	if len(fee) > 0 {
		cfg.Fee = big.NewInt(fee[0])
	}

	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func payment(attached, amount int64) Payment {
	return Payment{
		Token:      token,
		Sender:     sender,
		Attached:   big.NewInt(attached),
		Amount:     big.NewInt(amount),
		Recipient1: r1,
		Recipient2: r2,
	}
}

func requireBalance(t *testing.T, l *Ledger, acc util.Uint160, expected int64) {
	require.EqualValues(t, expected, l.BalanceOf(acc).Int64(), acc.StringLE())
}

func TestNew(t *testing.T) {
	_, err := New(Config{Owner: owner, Token: token, Fee: big.NewInt(-1)})
	require.ErrorIs(t, err, ErrNegativeFee)
}

func TestTransferWithFee(t *testing.T) {
	l := newLedger(t, 2)

	rec, err := l.Transfer(payment(100, 100))
	require.NoError(t, err)
	require.EqualValues(t, 49, rec.Share.Int64())
	require.EqualValues(t, 2, rec.Fee.Int64())
	require.EqualValues(t, 100, rec.Charged.Int64())
	requireBalance(t, l, r1, 49)
	requireBalance(t, l, r2, 49)
	requireBalance(t, l, owner, 2)

	rec, err = l.Transfer(payment(99, 99))
	require.NoError(t, err)
	require.EqualValues(t, 48, rec.Share.Int64())
	require.EqualValues(t, 98, rec.Charged.Int64())
	requireBalance(t, l, r1, 97)
	requireBalance(t, l, owner, 4)

	for _, tc := range []struct {
		name     string
		attached int64
		amount   int64
		err      error
	}{
		{"remainder too small", 3, 3, ErrRecipientPaidZeroOrOneCoin},
		{"less than fee", 100, 1, ErrSentLessThanFee},
		{"not enough coin", 10, 100, ErrNotEnoughCoin},
		{"negative amount", 10, -1, ErrNegativeAmount},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Transfer(payment(tc.attached, tc.amount))
			require.ErrorIs(t, err, tc.err)
			require.EqualError(t, err, tc.err.Error())
		})
	}

	requireBalance(t, l, r1, 97)
	requireBalance(t, l, r2, 97)
	requireBalance(t, l, owner, 4)
}

func TestTransferHugeFee(t *testing.T) {
	l := newLedger(t, 10000)

	_, err := l.Transfer(payment(100, 100))
	require.ErrorIs(t, err, ErrSentLessThanFee)
	require.Empty(t, l.Balances())
}

func TestTransferNoFee(t *testing.T) {
	l := newLedger(t)

	rec, err := l.Transfer(payment(100, 100))
	require.NoError(t, err)
	require.EqualValues(t, 50, rec.Share.Int64())
	require.Zero(t, rec.Fee.Sign())
	require.EqualValues(t, 100, rec.Charged.Int64())
	requireBalance(t, l, owner, 0)

	rec, err = l.Transfer(payment(7, 7))
	require.NoError(t, err)
	require.EqualValues(t, 3, rec.Share.Int64())
	require.EqualValues(t, 6, rec.Charged.Int64())

	rec, err = l.Transfer(payment(1, 1))
	require.NoError(t, err)
	require.Zero(t, rec.Share.Sign())
	require.Zero(t, rec.Charged.Sign())

	_, err = l.Transfer(payment(0, 10))
	require.ErrorIs(t, err, ErrSenderHasZeroCoin)
	_, err = l.Transfer(payment(10, 0))
	require.ErrorIs(t, err, ErrInvalidZeroAmount)
	_, err = l.Transfer(payment(10, 100))
	require.ErrorIs(t, err, ErrNotEnoughCoin)

	requireBalance(t, l, r1, 53)
	requireBalance(t, l, r2, 53)
	_, ok := l.Balances()[owner]
	require.False(t, ok)
}

func TestTransferIncorrectCoin(t *testing.T) {
	l := newLedger(t, 2)

	p := payment(100, 100)
	p.Token = util.Uint160{0xcc}
	_, err := l.Transfer(p)
	require.ErrorIs(t, err, ErrIncorrectCoin)
}

func TestTransferSameRecipient(t *testing.T) {
	l := newLedger(t, 2)

	p := payment(100, 100)
	p.Recipient2 = p.Recipient1
	_, err := l.Transfer(p)
	require.NoError(t, err)
	requireBalance(t, l, r1, 98)

	p.Recipient1 = owner
	p.Recipient2 = owner
	_, err = l.Transfer(p)
	require.NoError(t, err)
	requireBalance(t, l, owner, 2+49+49+2)
}

func TestTransferOverflow(t *testing.T) {
	l := newLedger(t)

	// the largest integer NeoVM can hold
	limit := new(big.Int).Lsh(big.NewInt(1), 255)
	limit.Sub(limit, big.NewInt(1))

	l.balances[r1] = new(big.Int).Set(limit)

	p := payment(10, 10)
	_, err := l.Transfer(p)
	require.ErrorIs(t, err, ErrOverflow)
	require.Equal(t, limit, l.BalanceOf(r1))
	requireBalance(t, l, r2, 0)
}

func TestWithdraw(t *testing.T) {
	l := newLedger(t)

	_, err := l.Transfer(payment(100, 100))
	require.NoError(t, err)

	require.ErrorIs(t, l.Withdraw(r1, big.NewInt(0)), ErrInvalidWithdrawAmount)
	require.ErrorIs(t, l.Withdraw(r1, big.NewInt(51)), ErrNotEnoughBalance)

	require.NoError(t, l.Withdraw(r1, big.NewInt(49)))
	requireBalance(t, l, r1, 1)

	require.NoError(t, l.Withdraw(r2, big.NewInt(50)))
	requireBalance(t, l, r2, 0)
	_, ok := l.Balances()[r2]
	require.True(t, ok, "zero balance entry must be kept")

	require.ErrorIs(t, l.Withdraw(util.Uint160{0x42}, big.NewInt(100)), ErrNotEnoughBalance)
}

func TestTotalAndHeld(t *testing.T) {
	l := newLedger(t, 2)

	_, err := l.Transfer(payment(100, 99))
	require.NoError(t, err)
	require.EqualValues(t, 98, l.Total().Int64())

	surplus, err := l.CheckHeld(big.NewInt(100))
	require.NoError(t, err)
	require.EqualValues(t, 2, surplus.Int64())

	_, err = l.CheckHeld(big.NewInt(97))
	require.ErrorIs(t, err, ErrUnderfunded)
}

func TestStorageDecoder(t *testing.T) {
	var d StorageDecoder

	_, err := d.Ledger()
	require.Error(t, err)

	require.NoError(t, d.Put([]byte(splitterconst.OwnerKey), owner.BytesBE()))
	require.NoError(t, d.Put([]byte(splitterconst.TokenKey), token.BytesBE()))
	require.NoError(t, d.Put([]byte(splitterconst.FeeKey), bigint.ToBytes(big.NewInt(2))))
	require.NoError(t, d.Put(append([]byte{splitterconst.BalancePrefix}, r1.BytesBE()...), bigint.ToBytes(big.NewInt(49))))
	require.NoError(t, d.Put(append([]byte{splitterconst.BalancePrefix}, r2.BytesBE()...), []byte{}))

	require.Error(t, d.Put([]byte("x"), nil))
	require.Error(t, d.Put([]byte{splitterconst.BalancePrefix, 1}, nil))
	require.Error(t, d.Put(append([]byte{splitterconst.BalancePrefix}, owner.BytesBE()...), bigint.ToBytes(big.NewInt(-1))))

	l, err := d.Ledger()
	require.NoError(t, err)
	require.Equal(t, owner, l.Config().Owner)
	require.Equal(t, token, l.Config().Token)
	require.True(t, l.FeeEnabled())
	require.EqualValues(t, 2, l.Config().Fee.Int64())
	requireBalance(t, l, r1, 49)
	requireBalance(t, l, r2, 0)
	require.Equal(t, []util.Uint160{r1, r2}, l.Accounts())
}

func TestReplay(t *testing.T) {
	chain := newLedger(t, 2)
	_, err := chain.Transfer(payment(100, 100))
	require.NoError(t, err)
	require.NoError(t, chain.Withdraw(r1, big.NewInt(40)))

	replayed := newLedger(t, 2)
	require.NoError(t, replayed.ApplySplit(r1, r2, owner, big.NewInt(49), big.NewInt(2)))
	require.NoError(t, replayed.ApplyWithdraw(r1, big.NewInt(40)))
	require.Empty(t, Compare(chain, replayed))

	require.Error(t, replayed.ApplySplit(r1, r2, util.Uint160{0x77}, big.NewInt(1), big.NewInt(2)))
	require.Error(t, replayed.ApplySplit(r1, r2, owner, big.NewInt(1), big.NewInt(3)))

	require.NoError(t, replayed.ApplyWithdraw(r2, big.NewInt(1)))
	require.Equal(t, []Mismatch{{
		Account:  r2,
		Expected: big.NewInt(49),
		Actual:   big.NewInt(48),
	}}, Compare(chain, replayed))
}

func TestRestore(t *testing.T) {
	l, err := Restore(Config{Owner: owner, Token: token}, map[util.Uint160]*big.Int{
		r1: big.NewInt(5),
		r2: big.NewInt(0),
	})
	require.NoError(t, err)
	require.False(t, l.FeeEnabled())
	requireBalance(t, l, r1, 5)
	require.Equal(t, []util.Uint160{r1, r2}, l.Accounts())

	_, err = Restore(Config{Owner: owner, Token: token}, map[util.Uint160]*big.Int{r1: big.NewInt(-5)})
	require.Error(t, err)
}

func TestReplayOverflow(t *testing.T) {
	l := newLedger(t, 2)

	limit := new(big.Int).Lsh(big.NewInt(1), 255)
	limit.Sub(limit, big.NewInt(1))
	l.balances[owner] = new(big.Int).Set(limit)

	err := l.ApplySplit(r1, r2, owner, big.NewInt(49), big.NewInt(2))
	require.ErrorIs(t, err, ErrOverflow)

	requireBalance(t, l, r1, 0)
	requireBalance(t, l, r2, 0)
	require.Equal(t, limit, l.BalanceOf(owner))
	require.Len(t, l.Balances(), 1)
}
