package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/contract"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
)

// ErrTransferFailed is thrown when the token contract rejects a payout.
const ErrTransferFailed = "failed to transfer funds, aborting"

// PayFromContract transfers amount of the NEP-17 token from the executing
// contract account to the receiver. Data is not attached, so a receiving
// contract gets nil in its onNEP17Payment.
func PayFromContract(token, to interop.Hash160, amount int) {
	from := runtime.GetExecutingScriptHash()

	transferred := contract.Call(token, "transfer", contract.All, from, to, amount, nil).(bool)
	if !transferred {
		panic(ErrTransferFailed)
	}
}
