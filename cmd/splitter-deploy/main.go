// splitter-deploy deploys Splitter contract or updates the deployed one.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/nef"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/splitter-contract/deploy"
	"github.com/nspcc-dev/splitter-contract/internal/config"
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

	var cfg config.Deploy
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

	acc, err := openAccount(cfg.Wallet)
	if err != nil {
		return err
	}

	nefFile, m, err := readContract(cfg.NEF, cfg.Manifest)
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

	prm := deploy.Prm{
		Logger:       log,
		Blockchain:   c,
		LocalAccount: acc,
		NEF:          nefFile,
		Manifest:     m,
		Contract:     cfg.Contract.Uint160(),
		Owner:        cfg.Owner.Uint160(),
		Token:        cfg.Token.Uint160(),
	}
	if cfg.Fee != nil {
		prm.Fee = cfg.Fee.Int
	}

	addr, err := deploy.Deploy(ctx, prm)
	if err != nil {
		return err
	}

	log.Info("Splitter contract is ready",
		zap.Stringer("address", addr),
		zap.String("neo address", address.Uint160ToString(addr)))

	return nil
}

// openAccount returns the unlocked account from the wallet: the one with the
// configured address or the default one.
func openAccount(cfg config.Wallet) (*wallet.Account, error) {
	w, err := wallet.NewWalletFromFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}

	var acc *wallet.Account

	if cfg.Address != "" {
		h, err := config.ParseHash160(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("wallet account: %w", err)
		}

		acc = w.GetAccount(h)
		if acc == nil {
			return nil, fmt.Errorf("account %s is missing in the wallet", cfg.Address)
		}
	} else {
		h := w.GetChangeAddress()

		acc = w.GetAccount(h)
		if acc == nil {
			return nil, errors.New("wallet has no default account")
		}
	}

	if err = acc.Decrypt(cfg.Password, w.Scrypt); err != nil {
		return nil, fmt.Errorf("unlock account %s: %w", acc.Address, err)
	}

	return acc, nil
}

func readContract(nefPath, manifestPath string) (nef.File, manifest.Manifest, error) {
	var m manifest.Manifest

	b, err := os.ReadFile(nefPath)
	if err != nil {
		return nef.File{}, m, fmt.Errorf("read NEF: %w", err)
	}

	nefFile, err := nef.FileFromBytes(b)
	if err != nil {
		return nef.File{}, m, fmt.Errorf("decode NEF: %w", err)
	}

	b, err = os.ReadFile(manifestPath)
	if err != nil {
		return nef.File{}, m, fmt.Errorf("read manifest: %w", err)
	}

	if err = json.Unmarshal(b, &m); err != nil {
		return nef.File{}, m, fmt.Errorf("decode manifest: %w", err)
	}

	return nefFile, m, nil
}
