package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	cfg := Config{
		Host:     "localhost",
		User:     "splitter",
		Password: "secret",
		DBName:   "events",
	}
	cfg.SetDefaults()

	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, DefaultConnectAttempts, cfg.ConnectAttempts)
	require.Equal(t, 2*time.Second, cfg.RetryInterval)
	require.Equal(t, "error", cfg.LogLevel)
	require.Equal(t, "splitter:secret@tcp(localhost:3306)/events?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DSN())

	for name, f := range map[string]func(*Config){
		"no host":     func(c *Config) { c.Host = "" },
		"no user":     func(c *Config) { c.User = "" },
		"no database": func(c *Config) { c.DBName = "" },
		"bad port":    func(c *Config) { c.Port = 70000 },
		"bad level":   func(c *Config) { c.LogLevel = "debug" },
	} {
		t.Run(name, func(t *testing.T) {
			c := cfg
			f(&c)
			require.Error(t, c.Validate())
		})
	}
}
