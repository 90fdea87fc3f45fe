package splitter

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/iterator"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
	"github.com/nspcc-dev/splitter-contract/common"
	"github.com/nspcc-dev/splitter-contract/contracts/splitter/splitterconst"
)

// ledgerConfig is an immutable ledger configuration loaded once per call.
type ledgerConfig struct {
	owner      interop.Hash160
	token      interop.Hash160
	fee        int
	feeEnabled bool
}

// _deploy stores ledger owner, accepted token and optional fee. Deployment
// data is an array of two (owner, token) or three (owner, token, fee)
// elements. Configuration can't be changed after deployment.
// nolint:deadcode,unused
func _deploy(data any, isUpdate bool) {
	ctx := storage.GetContext()

	if isUpdate {
		args := data.([]any)
		common.CheckVersion(args[len(args)-1].(int))
		return
	}

	if data == nil {
		panic(splitterconst.ErrInvalidDeployData)
	}

	args := data.([]any)
	if len(args) != 2 && len(args) != 3 {
		panic(splitterconst.ErrInvalidDeployData)
	}

	owner := args[0].(interop.Hash160)
	if len(owner) != interop.Hash160Len {
		panic(splitterconst.ErrInvalidOwner)
	}

	token := args[1].(interop.Hash160)
	if len(token) != interop.Hash160Len {
		panic(splitterconst.ErrInvalidToken)
	}

	storage.Put(ctx, splitterconst.OwnerKey, owner)
	storage.Put(ctx, splitterconst.TokenKey, token)

	if len(args) == 3 {
		fee := args[2].(int)
		if fee < 0 {
			panic(splitterconst.ErrNegativeFee)
		}

		storage.Put(ctx, splitterconst.FeeKey, fee)
	}

	runtime.Log("splitter: contract initialized")
}

// Update method updates contract source code and manifest. It can be invoked
// only by the ledger owner. Ledger configuration and balances are kept.
func Update(script []byte, manifest []byte, data any) {
	ctx := storage.GetReadOnlyContext()
	common.CheckOwnerWitness(storage.Get(ctx, splitterconst.OwnerKey).(interop.Hash160))

	contract.Call(interop.Hash160(management.Hash), "update",
		contract.All, script, manifest, common.AppendVersion(data))
	runtime.Log("splitter contract updated")
}

// OnNEP17Payment is a callback of the accepted NEP-17 token. It splits the
// deposit between two recipients given in data, which must be an array of
// transfer amount, first recipient and second recipient.
//
// The fee (if the ledger has one) is credited to the owner, the rest of the
// transfer amount is split evenly between recipients. Odd unit and the part
// of the deposit exceeding the transfer amount stay on the contract account
// and are not credited to anyone. Charged amount is then transferred by the
// contract to itself.
//
// Minted tokens (like GAS rewards for NEO held by the contract) and the
// contract's own charge transfer are accepted without any ledger changes.
//
// This method produces Split notification.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	if from == nil || from.Equals(runtime.GetExecutingScriptHash()) {
		return
	}

	ctx := storage.GetContext()
	cfg := loadConfig(ctx)

	caller := runtime.GetCallingScriptHash()
	if !caller.Equals(cfg.token) {
		panic(splitterconst.ErrIncorrectCoin)
	}

	transferAmount, r1, r2 := paymentArgs(data)
	if transferAmount < 0 {
		panic(splitterconst.ErrNegativeAmount)
	}

	if cfg.feeEnabled {
		if cfg.fee > transferAmount {
			panic(splitterconst.ErrSentLessThanFee)
		}
	} else {
		if amount == 0 {
			panic(splitterconst.ErrSenderHasZeroCoin)
		}
		if transferAmount == 0 {
			panic(splitterconst.ErrInvalidZeroAmount)
		}
	}

	if transferAmount > amount {
		panic(splitterconst.ErrNotEnoughCoin)
	}

	if len(r1) != interop.Hash160Len || len(r2) != interop.Hash160Len {
		panic(splitterconst.ErrInvalidRecipient)
	}

	share, charged := split(cfg, transferAmount)

	credit(ctx, r1, share)
	credit(ctx, r2, share)
	if cfg.feeEnabled {
		credit(ctx, cfg.owner, cfg.fee)
	}

	self := runtime.GetExecutingScriptHash()
	common.PayFromContract(cfg.token, self, charged)

	runtime.Notify("Split", from, r1, r2, cfg.owner, share, cfg.fee, charged)
}

// Withdraw transfers amount of tokens from the ledger balance of the user
// to the user account. It can be invoked only by the user. The whole
// balance can be withdrawn.
//
// This method produces Withdraw notification.
func Withdraw(user interop.Hash160, amount int) {
	if len(user) != interop.Hash160Len {
		panic(splitterconst.ErrInvalidAddress)
	}

	common.CheckWitness(user)

	if amount <= 0 {
		panic(splitterconst.ErrInvalidWithdrawAmount)
	}

	ctx := storage.GetContext()
	cfg := loadConfig(ctx)

	key := balanceKey(user)
	balance := common.GetInt(ctx, key)
	if balance < amount {
		panic(splitterconst.ErrNotEnoughBalance)
	}

	storage.Put(ctx, key, balance-amount)

	common.PayFromContract(cfg.token, user, amount)

	runtime.Notify("Withdraw", user, amount)
}

// Owner returns the account fees are credited to.
func Owner() interop.Hash160 {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, splitterconst.OwnerKey).(interop.Hash160)
}

// Token returns script hash of the only NEP-17 token accepted by the ledger.
func Token() interop.Hash160 {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, splitterconst.TokenKey).(interop.Hash160)
}

// Fee returns the amount charged per transfer. It's 0 if the ledger
// charges no fee.
func Fee() int {
	ctx := storage.GetReadOnlyContext()
	return common.GetInt(ctx, splitterconst.FeeKey)
}

// FeeEnabled returns true if the ledger was deployed with a fee (even a zero one).
func FeeEnabled() bool {
	ctx := storage.GetReadOnlyContext()
	return storage.Get(ctx, splitterconst.FeeKey) != nil
}

// BalanceOf returns ledger balance of the account. Unknown accounts have
// zero balance.
func BalanceOf(addr interop.Hash160) int {
	if len(addr) != interop.Hash160Len {
		panic(splitterconst.ErrInvalidAddress)
	}

	ctx := storage.GetReadOnlyContext()
	return common.GetInt(ctx, balanceKey(addr))
}

// ListBalances returns an iterator over (account, balance) pairs of all
// accounts ever credited, including the ones with zero balance.
func ListBalances() iterator.Iterator {
	ctx := storage.GetReadOnlyContext()
	return storage.Find(ctx, []byte{splitterconst.BalancePrefix}, storage.RemovePrefix)
}

// Version returns the version of the contract.
func Version() int {
	return common.Version
}

func loadConfig(ctx storage.Context) ledgerConfig {
	cfg := ledgerConfig{
		owner: storage.Get(ctx, splitterconst.OwnerKey).(interop.Hash160),
		token: storage.Get(ctx, splitterconst.TokenKey).(interop.Hash160),
	}

	fee := storage.Get(ctx, splitterconst.FeeKey)
	if fee != nil {
		cfg.fee = fee.(int)
		cfg.feeEnabled = true
	}

	return cfg
}

func paymentArgs(data any) (int, interop.Hash160, interop.Hash160) {
	if data == nil {
		panic(splitterconst.ErrInvalidPaymentData)
	}

	args := data.([]any)
	if len(args) != 3 {
		panic(splitterconst.ErrInvalidPaymentData)
	}

	return args[0].(int), args[1].(interop.Hash160), args[2].(interop.Hash160)
}

// split returns the amount credited to each recipient and the total amount
// charged from the sender.
func split(cfg ledgerConfig, transferAmount int) (int, int) {
	if !cfg.feeEnabled {
		share := transferAmount / 2
		return share, 2 * share
	}

	share := (transferAmount - cfg.fee) / 2
	if share == 0 {
		panic(splitterconst.ErrRecipientPaidZeroOrOneCoin)
	}

	return share, cfg.fee + 2*share
}

func credit(ctx storage.Context, addr interop.Hash160, amount int) {
	key := balanceKey(addr)
	storage.Put(ctx, key, common.GetInt(ctx, key)+amount)
}

func balanceKey(addr interop.Hash160) []byte {
	return append([]byte{splitterconst.BalancePrefix}, addr...)
}
