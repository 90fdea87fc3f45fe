// Package indexer stores Splitter notifications in a database.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/splitter-contract/internal/scan"
	"go.uber.org/zap"
)

// Prm groups parameters of New.
type Prm struct {
	// Logger, nop if not set.
	Logger *zap.Logger

	Chain    scan.Chain
	Contract util.Uint160
	Store    Store

	// Height to start from when Store has no cursor.
	StartHeight uint32
	// Pause between synchronizations in Run.
	PollInterval time.Duration
}

// Indexer follows the chain and saves notifications block by block.
type Indexer struct {
	log      *zap.Logger
	scanner  *scan.Scanner
	store    Store
	contract string
	start    uint32
	interval time.Duration
}

// New returns Indexer for the given parameters.
func New(prm Prm) (*Indexer, error) {
	switch {
	case prm.Chain == nil:
		return nil, errors.New("missing chain")
	case prm.Store == nil:
		return nil, errors.New("missing store")
	case prm.PollInterval <= 0:
		return nil, fmt.Errorf("non-positive poll interval %s", prm.PollInterval)
	}

	log := prm.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Indexer{
		log:      log.With(zap.Stringer("contract", prm.Contract)),
		scanner:  scan.New(prm.Chain, prm.Contract),
		store:    prm.Store,
		contract: prm.Contract.StringLE(),
		start:    prm.StartHeight,
		interval: prm.PollInterval,
	}, nil
}

// Run synchronizes the store with the chain until ctx is done. Failed
// synchronizations are logged and retried after the poll interval.
func (x *Indexer) Run(ctx context.Context) error {
	t := time.NewTicker(x.interval)
	defer t.Stop()

	for {
		n, err := x.Sync(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			x.log.Error("synchronization failed", zap.Error(err))
		} else if n > 0 {
			x.log.Info("blocks indexed", zap.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Sync indexes all blocks after the stored cursor up to the latest one and
// returns the number of indexed blocks.
func (x *Indexer) Sync(ctx context.Context) (int, error) {
	next := x.start

	last, ok, err := x.store.Cursor(ctx, x.contract)
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	if ok {
		next = last + 1
	}

	latest, err := x.scanner.Height()
	if err != nil {
		return 0, err
	}

	if next > latest {
		return 0, nil
	}

	var n int

	err = x.scanner.Range(ctx, next, latest, func(b scan.Block) error {
		if err := x.store.SaveBlock(ctx, x.contract, Records(b)); err != nil {
			return fmt.Errorf("save block #%d: %w", b.Height, err)
		}

		if len(b.Events) > 0 {
			x.log.Debug("notifications indexed",
				zap.Uint32("height", b.Height),
				zap.Int("count", len(b.Events)))
		}

		n++
		return nil
	})

	return n, err
}

// Records converts scanned block into database records.
func Records(b scan.Block) BlockRecords {
	res := BlockRecords{Height: b.Height}

	for _, ev := range b.Events {
		switch {
		case ev.Split != nil:
			res.Splits = append(res.Splits, SplitRecord{
				Height:     b.Height,
				TxHash:     ev.Tx.StringLE(),
				Index:      ev.Index,
				Sender:     ev.Split.Sender.StringLE(),
				Recipient1: ev.Split.Recipient1.StringLE(),
				Recipient2: ev.Split.Recipient2.StringLE(),
				Owner:      ev.Split.Owner.StringLE(),
				Share:      ev.Split.Share.String(),
				Fee:        ev.Split.Fee.String(),
				Charged:    ev.Split.Charged.String(),
			})
		case ev.Withdraw != nil:
			res.Withdraws = append(res.Withdraws, WithdrawRecord{
				Height: b.Height,
				TxHash: ev.Tx.StringLE(),
				Index:  ev.Index,
				User:   ev.Withdraw.User.StringLE(),
				Amount: ev.Withdraw.Amount.String(),
			})
		}
	}

	return res
}
