// Package config loads server configuration from an optional config file
// and LINEDOCS_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Collab CollabConfig `mapstructure:"collab"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// AuthConfig configures token verification.
type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
}

// CollabConfig tunes the collaboration engine.
type CollabConfig struct {
	AutoLockDelayMs        int `mapstructure:"auto_lock_delay_ms"`
	AutoVersionIntervalMin int `mapstructure:"auto_version_interval_minutes"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
}

// AutoLockDelay returns the debounce window as a duration.
func (c CollabConfig) AutoLockDelay() time.Duration {
	return time.Duration(c.AutoLockDelayMs) * time.Millisecond
}

// AutoVersionInterval returns the minimum gap between automatic versions.
func (c CollabConfig) AutoVersionInterval() time.Duration {
	return time.Duration(c.AutoVersionIntervalMin) * time.Minute
}

// Load reads configuration from ./config.yaml (if present) and the
// environment. Environment variables use the LINEDOCS_ prefix with
// underscores, e.g. LINEDOCS_SERVER_ADDR.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.sqlite_path", "line-docs.db")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("collab.auto_lock_delay_ms", 500)
	v.SetDefault("collab.auto_version_interval_minutes", 10)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("LINEDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.Collab.AutoLockDelayMs < 0 || c.Collab.AutoVersionIntervalMin < 0 {
		return errors.New("collab intervals must not be negative")
	}

	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
