package tests

import (
	"path"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/interop/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

func iteratorToArray(iter *storage.Iterator) []stackitem.Item {
	stackItems := make([]stackitem.Item, 0)
	for iter.Next() {
		stackItems = append(stackItems, iter.Value())
	}
	return stackItems
}

func newExecutor(t *testing.T) *neotest.Executor {
	bc, acc := chain.NewSingle(t)
	return neotest.NewExecutor(t, bc, acc, acc)
}

const splitterPath = "../contracts/splitter"

type splitterEnv struct {
	e        *neotest.Executor
	c        *neotest.ContractInvoker
	contract *neotest.Contract
	owner    neotest.Signer
	gasHash  util.Uint160
}

// newSplitterEnv deploys Splitter accepting GAS. Fee is set only if passed.
func newSplitterEnv(t *testing.T, fee ...int64) splitterEnv {
	e := newExecutor(t)

	owner := e.NewAccount(t)
	gasHash := e.NativeHash(t, nativenames.Gas)

	args := []any{owner.ScriptHash(), gasHash}
	if len(fee) > 0 {
		args = append(args, fee[0])
	}

	ctr := neotest.CompileFile(t, e.CommitteeHash, splitterPath, path.Join(splitterPath, "config.yml"))
	e.DeployContract(t, ctr, args)

	return splitterEnv{
		e:        e,
		c:        e.CommitteeInvoker(ctr.Hash),
		contract: ctr,
		owner:    owner,
		gasHash:  gasHash,
	}
}

// pay sends attached GAS from the sender to Splitter asking to split
// transferAmount between recipients.
func (x splitterEnv) pay(t *testing.T, sender neotest.Signer, attached, transferAmount int64, r1, r2 any) util.Uint256 {
	gasInv := x.e.NewInvoker(x.gasHash, sender)
	return gasInv.Invoke(t, true, "transfer", sender.ScriptHash(), x.c.Hash, attached,
		[]any{transferAmount, r1, r2})
}

func (x splitterEnv) payFail(t *testing.T, msg string, sender neotest.Signer, attached, transferAmount int64, r1, r2 any) {
	gasInv := x.e.NewInvoker(x.gasHash, sender)
	gasInv.InvokeFail(t, msg, "transfer", sender.ScriptHash(), x.c.Hash, attached,
		[]any{transferAmount, r1, r2})
}

func (x splitterEnv) contractGAS(t *testing.T) int64 {
	res, err := x.e.CommitteeInvoker(x.gasHash).TestInvoke(t, "balanceOf", x.c.Hash)
	require.NoError(t, err)
	return res.Top().BigInt().Int64()
}

func (x splitterEnv) checkBalance(t *testing.T, acc util.Uint160, expected int64) {
	s, err := x.c.TestInvoke(t, "balanceOf", acc)
	require.NoError(t, err)
	require.EqualValues(t, expected, s.Top().BigInt().Int64())
}

func (x splitterEnv) events(t *testing.T, h util.Uint256, name string) []state.NotificationEvent {
	aer := x.e.GetTxExecResult(t, h)

	var res []state.NotificationEvent
	for _, ev := range aer.Events {
		if ev.ScriptHash.Equals(x.c.Hash) && ev.Name == name {
			res = append(res, ev)
		}
	}
	return res
}

// requireEventArgs checks notification parameters one by one. Hashes are
// expected as util.Uint160, integers as int.
func requireEventArgs(t *testing.T, ev state.NotificationEvent, expected ...any) {
	arr := ev.Item.Value().([]stackitem.Item)
	require.Len(t, arr, len(expected))

	for i := range expected {
		switch v := expected[i].(type) {
		case util.Uint160:
			b, err := arr[i].TryBytes()
			require.NoError(t, err, i)
			require.Equal(t, v.BytesBE(), b, i)
		case int:
			n, err := arr[i].TryInteger()
			require.NoError(t, err, i)
			require.EqualValues(t, v, n.Int64(), i)
		default:
			t.Fatalf("unexpected type of event argument #%d: %T", i, v)
		}
	}
}
