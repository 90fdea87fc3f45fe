// splitter-audit checks consistency of the Splitter ledger: it decodes the
// contract storage, makes sure the contract holds enough tokens to pay all
// balances and optionally replays all notifications to reproduce the ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/splitter-contract/internal/config"
	"github.com/nspcc-dev/splitter-contract/internal/ledger"
	"github.com/nspcc-dev/splitter-contract/internal/scan"
	"github.com/nspcc-dev/splitter-contract/rpc/splitter"
	"go.uber.org/zap"
)

func main() {
	if err := cliMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func cliMain() error {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	if *configPath == "" {
		return errors.New("missing configuration file")
	}

	var cfg config.Audit
	if err := config.Load(*configPath, &cfg); err != nil {
		return err
	}

	log, err := cfg.Logger.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := newRemoteBlockChain(ctx, cfg.RPC)
	if err != nil {
		return fmt.Errorf("init remote blockchain: %w", err)
	}
	defer b.close()

	return audit(ctx, log, b, cfg)
}

func audit(ctx context.Context, log *zap.Logger, b *remoteBlockchain, cfg config.Audit) error {
	contract := cfg.Contract.Uint160()
	log = log.With(zap.Stringer("contract", contract))

	ctr, err := b.contractState(contract)
	if err != nil {
		return err
	}

	log.Info("auditing contract", zap.String("name", ctr.Manifest.Name), zap.Int32("id", ctr.ID))

	var dec ledger.StorageDecoder

	height, err := b.iterateContractStorage(contract, dec.Put)
	if err != nil {
		return fmt.Errorf("read contract storage: %w", err)
	}

	stored, err := dec.Ledger()
	if err != nil {
		return fmt.Errorf("decode contract storage: %w", err)
	}

	ledgerCfg := stored.Config()

	log.Info("contract storage decoded",
		zap.Uint32("height", height),
		zap.Stringer("owner", ledgerCfg.Owner),
		zap.Stringer("token", ledgerCfg.Token),
		zap.Bool("fee enabled", stored.FeeEnabled()),
		zap.Int("accounts", len(stored.Accounts())),
		zap.Stringer("total", stored.Total()))

	listed, err := splitter.NewReader(b.historicInvoker(height), contract).Balances(cfg.IteratorBatch)
	if err != nil {
		return fmt.Errorf("list balances: %w", err)
	}

	listedLedger, err := ledger.Restore(ledgerCfg, listed)
	if err != nil {
		return fmt.Errorf("listed balances: %w", err)
	}

	if err = reportMismatches(log, "listed balances differ from storage", stored, listedLedger); err != nil {
		return err
	}

	held, err := b.tokenBalance(height, ledgerCfg.Token, contract)
	if err != nil {
		return err
	}

	surplus, err := stored.CheckHeld(held)
	if err != nil {
		return err
	}

	log.Info("contract holds enough funds", zap.Stringer("held", held), zap.Stringer("surplus", surplus))

	if !cfg.Replay.Enabled {
		return nil
	}

	replayed, err := ledger.New(ledgerCfg)
	if err != nil {
		return err
	}

	log.Info("replaying notifications...", zap.Uint32("from", cfg.Replay.FromHeight), zap.Uint32("to", height))

	var events int

	err = scan.New(b.rpc, contract).Range(ctx, cfg.Replay.FromHeight, height, func(blk scan.Block) error {
		events += len(blk.Events)
		return scan.Apply(replayed, blk)
	})
	if err != nil {
		return fmt.Errorf("replay notifications: %w", err)
	}

	log.Info("notifications replayed", zap.Int("count", events))

	return reportMismatches(log, "replayed ledger differs from storage", stored, replayed)
}

func reportMismatches(log *zap.Logger, msg string, expected, actual *ledger.Ledger) error {
	mm := ledger.Compare(expected, actual)
	if len(mm) == 0 {
		return nil
	}

	for _, m := range mm {
		log.Error(msg,
			zap.String("account", address.Uint160ToString(m.Account)),
			zap.Stringer("expected", m.Expected),
			zap.Stringer("actual", m.Actual))
	}

	return fmt.Errorf("%s: %d account(s)", msg, len(mm))
}
