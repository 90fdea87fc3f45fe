package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/nep17"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/splitter-contract/internal/config"
)

// wrapper over rpcNeo providing blockchain services needed for current command.
type remoteBlockchain struct {
	rpc *rpcclient.Client
}

// newRemoteBlockChain dials Neo RPC server and returns remoteBlockchain based
// on the opened connection.
func newRemoteBlockChain(ctx context.Context, cfg config.RPC) (*remoteBlockchain, error) {
	c, err := rpcclient.New(ctx, cfg.Endpoint, rpcclient.Options{
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("RPC client dial: %w", err)
	}

	if err = c.Init(); err != nil {
		c.Close()
		return nil, fmt.Errorf("RPC client init: %w", err)
	}

	return &remoteBlockchain{rpc: c}, nil
}

func (x *remoteBlockchain) close() {
	x.rpc.Close()
}

func (x *remoteBlockchain) contractState(h util.Uint160) (*state.Contract, error) {
	res, err := x.rpc.GetContractStateByHash(h)
	if err != nil {
		return nil, fmt.Errorf("get state of the requested contract by hash '%s': %w", h.StringLE(), err)
	}
	return res, nil
}

// historicInvoker returns invoker reading the chain state at the given
// height.
func (x *remoteBlockchain) historicInvoker(height uint32) *invoker.Invoker {
	return invoker.NewHistoricAtHeight(height, x.rpc, nil)
}

// tokenBalance returns the amount of tokens held by the account at the given
// height.
func (x *remoteBlockchain) tokenBalance(height uint32, token, acc util.Uint160) (*big.Int, error) {
	res, err := nep17.NewReader(x.historicInvoker(height), token).BalanceOf(acc)
	if err != nil {
		return nil, fmt.Errorf("get %s balance of %s: %w", token.StringLE(), acc.StringLE(), err)
	}
	return res, nil
}

// iterateContractStorage iterates over all storage items of the Neo smart
// contract referenced by given address and passes them into f. Items are
// read at the state root of the penult block, its index is returned.
// iterateContractStorage breaks on any f's error and returns it.
func (x *remoteBlockchain) iterateContractStorage(contract util.Uint160, f func(key, value []byte) error) (uint32, error) {
	nLatestBlock, err := x.rpc.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get number of the latest block: %w", err)
	}

	if nLatestBlock < 2 {
		return 0, fmt.Errorf("chain is too short: %d blocks", nLatestBlock)
	}

	height := nLatestBlock - 2

	stateRoot, err := x.rpc.GetStateRootByHeight(height)
	if err != nil {
		return 0, fmt.Errorf("get state root at penult block #%d: %w", height, err)
	}

	var start []byte

	for {
		res, err := x.rpc.FindStates(stateRoot.Root, contract, nil, start, nil)
		if err != nil {
			return 0, fmt.Errorf("get historical storage items of the requested contract at state root '%s': %w", stateRoot.Root, err)
		}

		for i := range res.Results {
			err = f(res.Results[i].Key, res.Results[i].Value)
			if err != nil {
				return 0, err
			}
		}

		if !res.Truncated {
			return height, nil
		}

		start = res.Results[len(res.Results)-1].Key
	}
}
