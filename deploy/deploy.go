// Package deploy deploys Splitter contract to the Neo network or updates the
// existing one.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/management"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/splitter-contract/common"
	"github.com/nspcc-dev/splitter-contract/rpc/splitter"
	"go.uber.org/zap"
)

// DefaultPollInterval is a default pause between transaction status
// requests.
const DefaultPollInterval = time.Second

// Blockchain groups services of the Neo blockchain required for Splitter
// deployment.
type Blockchain interface {
	// RPCActor groups functions needed to compose and send transactions.
	actor.RPCActor

	// GetContractStateByHash returns network state of the smart contract by its
	// address. GetContractStateByHash returns error with 'Unknown contract'
	// substring if requested contract is missing.
	GetContractStateByHash(util.Uint160) (*state.Contract, error)

	// GetApplicationLog returns execution result of the persisted transaction.
	GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)
}

// Prm groups parameters of the Splitter deployment procedure.
type Prm struct {
	// Writes progress into the log, nop if not set.
	Logger *zap.Logger

	Blockchain Blockchain

	// Local process account used for transaction signing (must be unlocked).
	// The contract address depends on it. Updates are allowed only when it
	// is the contract owner.
	LocalAccount *wallet.Account

	NEF      nef.File
	Manifest manifest.Manifest

	// Address of the already deployed contract. If not set, it is derived
	// from the local account and the contract NEF and name, which is correct
	// only for contracts never updated before.
	Contract util.Uint160

	Owner util.Uint160
	Token util.Uint160
	// Fee charged per transfer, nil to charge nothing.
	Fee *big.Int

	// Pause between transaction status requests, DefaultPollInterval if not
	// set.
	PollInterval time.Duration
}

// DeployData returns data passed to the _deploy method of the contract on
// its initial deployment.
func DeployData(owner, token util.Uint160, fee *big.Int) []any {
	res := []any{owner, token}
	if fee != nil {
		res = append(res, fee)
	}
	return res
}

func (prm Prm) validate() error {
	switch {
	case prm.Blockchain == nil:
		return errors.New("missing blockchain")
	case prm.LocalAccount == nil:
		return errors.New("missing local account")
	case prm.Manifest.Name == "":
		return errors.New("missing contract manifest")
	case prm.Owner.Equals(util.Uint160{}):
		return errors.New("missing owner")
	case prm.Token.Equals(util.Uint160{}):
		return errors.New("missing token")
	case prm.Fee != nil && prm.Fee.Sign() < 0:
		return errors.New("negative fee")
	}
	return nil
}

// Deploy makes Splitter contract available on the chain: deploys it when it
// is missing, updates it when the on-chain version is lower than the local
// one and does nothing otherwise. Returns the contract address.
//
// Deploy waits for the transaction to be accepted and aborts by context.
func Deploy(ctx context.Context, prm Prm) (util.Uint160, error) {
	if err := prm.validate(); err != nil {
		return util.Uint160{}, fmt.Errorf("invalid parameters: %w", err)
	}

	log := prm.Logger
	if log == nil {
		log = zap.NewNop()
	}

	localAcc := prm.LocalAccount.ScriptHash()
	addr := prm.Contract
	if addr.Equals(util.Uint160{}) {
		addr = state.CreateContractHash(localAcc, prm.NEF.Checksum, prm.Manifest.Name)
	}

	log = log.With(zap.Stringer("contract", addr))

	act, err := actor.NewTuned(prm.Blockchain, []actor.SignerAccount{{
		Signer: transaction.Signer{
			Account: localAcc,
			Scopes:  transaction.CalledByEntry,
		},
		Account: prm.LocalAccount,
	}}, actor.Options{
		CheckerModifier: runtimeTransactionModifier(func() uint32 {
			h, err := prm.Blockchain.GetBlockCount()
			if err != nil {
				return 0
			}
			return h
		}),
	})
	if err != nil {
		return util.Uint160{}, fmt.Errorf("init transaction sender from local account: %w", err)
	}

	w := txWaiter{
		blockchain: prm.Blockchain,
		interval:   prm.PollInterval,
	}
	if w.interval <= 0 {
		w.interval = DefaultPollInterval
	}

	_, err = prm.Blockchain.GetContractStateByHash(addr)
	if err != nil {
		if !isErrContractNotFound(err) {
			return util.Uint160{}, fmt.Errorf("get contract state: %w", err)
		}

		if !prm.Contract.Equals(util.Uint160{}) {
			return util.Uint160{}, fmt.Errorf("contract %s is missing on the chain", addr.StringLE())
		}

		log.Info("contract is missing on the chain, deploying...")

		txHash, vub, err := management.New(act).Deploy(&prm.NEF, &prm.Manifest, DeployData(prm.Owner, prm.Token, prm.Fee))
		if err != nil {
			return util.Uint160{}, fmt.Errorf("send deployment transaction: %w", err)
		}

		log.Info("deployment transaction sent, waiting...", zap.Stringer("tx", txHash), zap.Uint32("vub", vub))

		if err = w.await(ctx, txHash, vub); err != nil {
			return util.Uint160{}, fmt.Errorf("deployment transaction %s: %w", txHash.StringLE(), err)
		}

		log.Info("contract successfully deployed")

		return addr, nil
	}

	reader := splitter.NewReader(invoker.New(prm.Blockchain, nil), addr)

	onChainVersion, err := reader.Version()
	if err != nil {
		return util.Uint160{}, fmt.Errorf("get on-chain contract version: %w", err)
	}

	if onChainVersion.Cmp(big.NewInt(common.Version)) >= 0 {
		log.Info("contract is already up to date", zap.Stringer("version", onChainVersion))
		return addr, nil
	}

	owner, err := reader.Owner()
	if err != nil {
		return util.Uint160{}, fmt.Errorf("get contract owner: %w", err)
	}

	if !owner.Equals(localAcc) {
		return util.Uint160{}, fmt.Errorf("contract update requires owner %s signature, local account is %s",
			owner.StringLE(), localAcc.StringLE())
	}

	bNEF, err := prm.NEF.Bytes()
	if err != nil {
		return util.Uint160{}, fmt.Errorf("encode NEF: %w", err)
	}

	bManifest, err := json.Marshal(prm.Manifest)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("encode manifest: %w", err)
	}

	log.Info("updating contract...", zap.Stringer("from version", onChainVersion), zap.Int("to version", common.Version))

	txHash, vub, err := splitter.New(act, addr).Update(bNEF, bManifest, nil)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("send update transaction: %w", err)
	}

	if err = w.await(ctx, txHash, vub); err != nil {
		return util.Uint160{}, fmt.Errorf("update transaction %s: %w", txHash.StringLE(), err)
	}

	log.Info("contract successfully updated")

	return addr, nil
}

func isErrContractNotFound(err error) bool {
	return errors.Is(err, neorpc.ErrUnknownContract) || strings.Contains(err.Error(), "Unknown contract")
}

// returns actor.TransactionCheckerModifier which checks that invocation
// finished with 'HALT' state and, if so, sets transaction's nonce and
// ValidUntilBlock to 100*N and 100*(N+1) correspondingly, where
// 100*N <= current height < 100*(N+1). Repeated runs within the same span
// produce the same transaction, so it is not sent twice.
func runtimeTransactionModifier(getBlockchainHeight func() uint32) actor.TransactionCheckerModifier {
	return func(r *result.Invoke, tx *transaction.Transaction) error {
		err := actor.DefaultCheckerModifier(r, tx)
		if err != nil {
			return err
		}

		curHeight := getBlockchainHeight()
		const span = 100
		n := curHeight / span

		tx.Nonce = n * span

		if math.MaxUint32-span > tx.Nonce {
			tx.ValidUntilBlock = tx.Nonce + span
		} else {
			tx.ValidUntilBlock = math.MaxUint32
		}

		return nil
	}
}

type txWaiter struct {
	blockchain Blockchain
	interval   time.Duration
}

// await waits for the transaction to be persisted and checks it finished
// successfully. It fails when the chain passes vub without the transaction.
func (w txWaiter) await(ctx context.Context, txHash util.Uint256, vub uint32) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		aer, err := w.blockchain.GetApplicationLog(txHash, nil)
		if err == nil {
			return checkExecution(aer)
		}

		height, err := w.blockchain.GetBlockCount()
		if err == nil && height > vub+1 {
			// the log could be persisted after the previous request
			aer, err = w.blockchain.GetApplicationLog(txHash, nil)
			if err == nil {
				return checkExecution(aer)
			}
			return fmt.Errorf("transaction expired at block #%d", vub)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func checkExecution(aer *result.ApplicationLog) error {
	for _, ex := range aer.Executions {
		if ex.Trigger != trigger.Application {
			continue
		}
		if ex.VMState != vmstate.Halt {
			return fmt.Errorf("execution failed with %s state: %s", ex.VMState, ex.FaultException)
		}
		return nil
	}
	return errors.New("no application execution")
}
