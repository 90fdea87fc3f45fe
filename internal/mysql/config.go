// Package mysql opens GORM connections to MySQL.
package mysql

import (
	"errors"
	"fmt"
	"time"
)

// Config describes MySQL connection and its pool.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// Connection attempts before giving up and the pause between them.
	ConnectAttempts int           `yaml:"connect_attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`

	// GORM log level: silent, error, warn or info.
	LogLevel string `yaml:"log_level"`
}

// Defaults used for zero Config fields.
const (
	DefaultPort            = 3306
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = time.Hour
	DefaultConnectAttempts = 10
	DefaultRetryInterval   = 2 * time.Second
)

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = DefaultConnectAttempts
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "error"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("missing host")
	case c.User == "":
		return errors.New("missing user")
	case c.DBName == "":
		return errors.New("missing database name")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.ConnectAttempts < 0:
		return fmt.Errorf("negative number of connection attempts %d", c.ConnectAttempts)
	}

	switch c.LogLevel {
	case "", "silent", "error", "warn", "info":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}

// DSN returns data source name in go-sql-driver format.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}
