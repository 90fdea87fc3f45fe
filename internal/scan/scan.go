// Package scan extracts Splitter notifications from the blockchain.
package scan

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/splitter-contract/contracts/splitter/splitterconst"
	"github.com/nspcc-dev/splitter-contract/rpc/splitter"
)

// Chain is a subset of RPC client methods the Scanner needs.
// [rpcclient.Client] satisfies it.
type Chain interface {
	GetBlockCount() (uint32, error)
	GetBlockByIndex(index uint32) (*block.Block, error)
	GetApplicationLog(hash util.Uint256, trig *trigger.Type) (*result.ApplicationLog, error)
}

// Event is a single Splitter notification. Exactly one of Split and Withdraw
// is set.
type Event struct {
	Tx util.Uint256
	// Index of the notification in the transaction execution.
	Index int

	Split    *splitter.SplitEvent
	Withdraw *splitter.WithdrawEvent
}

// Block contains Splitter notifications of one block in execution order.
type Block struct {
	Height uint32
	Events []Event
}

// Scanner reads notifications of one contract.
type Scanner struct {
	chain    Chain
	contract util.Uint160
}

// New returns Scanner looking for notifications of the given contract.
func New(chain Chain, contract util.Uint160) *Scanner {
	return &Scanner{
		chain:    chain,
		contract: contract,
	}
}

// Height returns the index of the latest block.
func (s *Scanner) Height() (uint32, error) {
	n, err := s.chain.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("get block count: %w", err)
	}
	if n == 0 {
		return 0, errors.New("empty chain")
	}
	return n - 1, nil
}

// Block returns notifications of the block with the given index. Failed
// transactions are skipped since their notifications are discarded.
func (s *Scanner) Block(height uint32) (Block, error) {
	b, err := s.chain.GetBlockByIndex(height)
	if err != nil {
		return Block{}, fmt.Errorf("get block #%d: %w", height, err)
	}

	res := Block{Height: height}

	for _, tx := range b.Transactions {
		h := tx.Hash()

		aer, err := s.chain.GetApplicationLog(h, nil)
		if err != nil {
			return Block{}, fmt.Errorf("get application log of tx %s: %w", h.StringLE(), err)
		}

		evs, err := s.txEvents(h, aer)
		if err != nil {
			return Block{}, fmt.Errorf("tx %s: %w", h.StringLE(), err)
		}

		res.Events = append(res.Events, evs...)
	}

	return res, nil
}

func (s *Scanner) txEvents(h util.Uint256, aer *result.ApplicationLog) ([]Event, error) {
	var res []Event

	for _, ex := range aer.Executions {
		if ex.Trigger != trigger.Application || ex.VMState != vmstate.Halt {
			continue
		}

		for i, ne := range ex.Events {
			if !ne.ScriptHash.Equals(s.contract) {
				continue
			}

			ev := Event{Tx: h, Index: i}

			switch ne.Name {
			case splitterconst.SplitEvent:
				ev.Split = new(splitter.SplitEvent)
				if err := ev.Split.FromStackItem(ne.Item); err != nil {
					return nil, fmt.Errorf("notification #%d: %w", i, err)
				}
			case splitterconst.WithdrawEvent:
				ev.Withdraw = new(splitter.WithdrawEvent)
				if err := ev.Withdraw.FromStackItem(ne.Item); err != nil {
					return nil, fmt.Errorf("notification #%d: %w", i, err)
				}
			default:
				continue
			}

			res = append(res, ev)
		}
	}

	return res, nil
}

// Range passes notifications of blocks in [from, to] to f one block at a
// time. Blocks without notifications are passed too. It stops on the first
// error returned by f or when ctx is done.
func (s *Scanner) Range(ctx context.Context, from, to uint32, f func(Block) error) error {
	for h := from; h <= to; h++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, err := s.Block(h)
		if err != nil {
			return err
		}

		if err = f(b); err != nil {
			return err
		}

		if h == math.MaxUint32 {
			break
		}
	}

	return nil
}
