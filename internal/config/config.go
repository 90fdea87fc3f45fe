// Package config contains YAML configurations of Splitter tools.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/splitter-contract/internal/mysql"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Default values of optional settings.
const (
	DefaultDialTimeout    = 15 * time.Second
	DefaultRequestTimeout = 15 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultLogLevel       = "info"
)

// Hash160 is a script hash which can be written either as a Neo address or
// as a hex-encoded LE string with optional 0x prefix.
type Hash160 util.Uint160

// ParseHash160 parses address or LE hex script hash.
func ParseHash160(s string) (util.Uint160, error) {
	if h, err := address.StringToUint160(s); err == nil {
		return h, nil
	}

	h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return util.Uint160{}, fmt.Errorf("%q is neither an address nor a script hash", s)
	}

	return h, nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (h *Hash160) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: script hash must be a scalar", node.Line)
	}

	u, err := ParseHash160(node.Value)
	if err != nil {
		return err
	}

	*h = Hash160(u)
	return nil
}

// Uint160 returns h as [util.Uint160].
func (h Hash160) Uint160() util.Uint160 {
	return util.Uint160(h)
}

// IsZero checks whether h is unset.
func (h Hash160) IsZero() bool {
	return h.Uint160().Equals(util.Uint160{})
}

// Amount is a non-negative integer of arbitrary size written as a YAML
// integer or a decimal string.
type Amount struct {
	*big.Int
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}

	v, ok := new(big.Int).SetString(strings.TrimSpace(node.Value), 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", node.Value)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("negative value %s", v)
	}

	a.Int = v
	return nil
}

// RPC configures connection to Neo RPC server.
type RPC struct {
	Endpoint       string        `yaml:"endpoint"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func (r *RPC) setDefaults() {
	if r.DialTimeout == 0 {
		r.DialTimeout = DefaultDialTimeout
	}
	if r.RequestTimeout == 0 {
		r.RequestTimeout = DefaultRequestTimeout
	}
}

func (r RPC) validate() error {
	if r.Endpoint == "" {
		return errors.New("missing endpoint")
	}
	if r.DialTimeout < 0 || r.RequestTimeout < 0 {
		return errors.New("negative timeout")
	}
	return nil
}

// Logger configures zap logger.
type Logger struct {
	Level string `yaml:"level"`
}

// Build creates production zap logger with configured level.
func (l Logger) Build() (*zap.Logger, error) {
	lvl := l.Level
	if lvl == "" {
		lvl = DefaultLogLevel
	}

	atom, err := zap.ParseAtomicLevel(lvl)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	c := zap.NewProductionConfig()
	c.Level = atom
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return c.Build()
}

// Wallet points to the account signing transactions.
type Wallet struct {
	Path     string `yaml:"path"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

func (w Wallet) validate() error {
	if w.Path == "" {
		return errors.New("missing wallet path")
	}
	return nil
}

// Deploy is a configuration of splitter-deploy.
type Deploy struct {
	RPC    RPC    `yaml:"rpc"`
	Logger Logger `yaml:"logger"`
	Wallet Wallet `yaml:"wallet"`

	// Compiled contract files.
	NEF      string `yaml:"nef"`
	Manifest string `yaml:"manifest"`

	// Contract is set to update the already deployed contract.
	Contract Hash160 `yaml:"contract"`

	Owner Hash160 `yaml:"owner"`
	Token Hash160 `yaml:"token"`
	// Fee is optional, the contract charges no fee without it.
	Fee *Amount `yaml:"fee"`
}

func (c *Deploy) setDefaults() {
	c.RPC.setDefaults()
}

// Validate checks the configuration.
func (c *Deploy) Validate() error {
	if err := c.RPC.validate(); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if err := c.Wallet.validate(); err != nil {
		return fmt.Errorf("wallet: %w", err)
	}

	switch {
	case c.NEF == "":
		return errors.New("missing NEF file path")
	case c.Manifest == "":
		return errors.New("missing manifest file path")
	case c.Owner.IsZero():
		return errors.New("missing owner")
	case c.Token.IsZero():
		return errors.New("missing token")
	}

	return nil
}

// Replay configures event replay of splitter-audit.
type Replay struct {
	Enabled bool `yaml:"enabled"`
	// Height of the contract deployment block. Events are read from it up to
	// the latest block.
	FromHeight uint32 `yaml:"from_height"`
}

// Audit is a configuration of splitter-audit.
type Audit struct {
	RPC      RPC     `yaml:"rpc"`
	Logger   Logger  `yaml:"logger"`
	Contract Hash160 `yaml:"contract"`
	Replay   Replay  `yaml:"replay"`
	// Number of items fetched per iterator traversal.
	IteratorBatch int `yaml:"iterator_batch"`
}

func (c *Audit) setDefaults() {
	c.RPC.setDefaults()
}

// Validate checks the configuration.
func (c *Audit) Validate() error {
	if err := c.RPC.validate(); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if c.Contract.IsZero() {
		return errors.New("missing contract")
	}
	if c.IteratorBatch < 0 {
		return fmt.Errorf("negative iterator batch %d", c.IteratorBatch)
	}
	return nil
}

// Indexer is a configuration of splitter-indexer.
type Indexer struct {
	RPC      RPC          `yaml:"rpc"`
	Logger   Logger       `yaml:"logger"`
	Contract Hash160      `yaml:"contract"`
	MySQL    mysql.Config `yaml:"mysql"`

	// Height to start from when the database has no cursor yet.
	StartHeight  uint32        `yaml:"start_height"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

func (c *Indexer) setDefaults() {
	c.RPC.setDefaults()
	c.MySQL.SetDefaults()
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Validate checks the configuration.
func (c *Indexer) Validate() error {
	if err := c.RPC.validate(); err != nil {
		return fmt.Errorf("rpc: %w", err)
	}
	if c.Contract.IsZero() {
		return errors.New("missing contract")
	}
	if err := c.MySQL.Validate(); err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("non-positive poll interval %s", c.PollInterval)
	}
	return nil
}

type validated interface {
	setDefaults()
	Validate() error
}

// Load reads YAML file into cfg, fills defaults and validates the result.
// Unknown fields are rejected.
func Load(path string, cfg validated) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err = dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.setDefaults()

	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	return nil
}
