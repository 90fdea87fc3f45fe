/*
Package splitterconst contains constants shared by the Splitter contract and
its off-chain users.

# Contract storage model

	"o" -> owner account, Hash160
	"t" -> accepted NEP-17 token, Hash160
	"f" -> fee, Integer. Missing if the ledger charges no fee
	'b' + account Hash160 -> ledger balance, Integer

Balance entries are never deleted: a fully withdrawn balance is kept as zero.
*/
package splitterconst

const (
	// OwnerKey is a storage key of the ledger owner.
	OwnerKey = "o"
	// TokenKey is a storage key of the accepted token hash.
	TokenKey = "t"
	// FeeKey is a storage key of the fee charged per transfer.
	FeeKey = "f"
	// BalancePrefix prefixes ledger balance keys.
	BalancePrefix = 'b'
)

const (
	// SplitEvent is a name of the notification produced by a successful transfer.
	SplitEvent = "Split"
	// WithdrawEvent is a name of the notification produced by a successful withdrawal.
	WithdrawEvent = "Withdraw"
)

// Failure messages. Contract invocations FAULT with these exact strings.
const (
	ErrIncorrectCoin              = "sender sent an incorrect coin"
	ErrSenderHasZeroCoin          = "sender has zero coin"
	ErrInvalidZeroAmount          = "sender must send more than zero coin"
	ErrNegativeAmount             = "transfer amount must not be negative"
	ErrNotEnoughCoin              = "sender does not have enough coin to make transfer"
	ErrSentLessThanFee            = "sender sent less than the fee"
	ErrRecipientPaidZeroOrOneCoin = "recipient would be paid zero or one coin"
	ErrNotEnoughBalance           = "not enough balance to withdraw input amount"
	ErrInvalidWithdrawAmount      = "withdraw amount must be positive"
	ErrInvalidPaymentData         = "invalid payment data"
	ErrInvalidRecipient           = "invalid recipient"
	ErrInvalidAddress             = "invalid address"
	ErrInvalidOwner               = "invalid owner"
	ErrInvalidToken               = "invalid token"
	ErrNegativeFee                = "fee must not be negative"
	ErrInvalidDeployData          = "invalid deployment data"
)
