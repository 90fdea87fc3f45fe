// splitter-indexer stores Splitter notifications in MySQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/splitter-contract/internal/config"
	"github.com/nspcc-dev/splitter-contract/internal/indexer"
	"github.com/nspcc-dev/splitter-contract/internal/mysql"
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

	var cfg config.Indexer
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

	db, err := mysql.NewClient(ctx, cfg.MySQL, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}()

	store, err := indexer.NewGormStore(db.DB())
	if err != nil {
		return err
	}

	c, err := rpcclient.New(ctx, cfg.RPC.Endpoint, rpcclient.Options{
		DialTimeout:    cfg.RPC.DialTimeout,
		RequestTimeout: cfg.RPC.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("RPC client dial: %w", err)
	}
	defer c.Close()

	if err = c.Init(); err != nil {
		return fmt.Errorf("RPC client init: %w", err)
	}

	x, err := indexer.New(indexer.Prm{
		Logger:       log,
		Chain:        c,
		Contract:     cfg.Contract.Uint160(),
		Store:        store,
		StartHeight:  cfg.StartHeight,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return err
	}

	log.Info("indexer started", zap.Stringer("contract", cfg.Contract.Uint160()))

	err = x.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("indexer stopped")
		return nil
	}

	return err
}
