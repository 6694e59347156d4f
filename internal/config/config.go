package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/lifecycle"
	"github.com/loykin/herdsman/internal/logger"
	"github.com/loykin/herdsman/internal/scanner"
	"github.com/loykin/herdsman/internal/state"
)

// Config is the top-level TOML structure.
type Config struct {
	BaseDir    string `toml:"base_dir" mapstructure:"base_dir"`
	NameFilter string `toml:"name_filter" mapstructure:"name_filter"`

	Catalog   CatalogConfig   `toml:"catalog" mapstructure:"catalog"`
	Scan      ScanConfig      `toml:"scan" mapstructure:"scan"`
	Lifecycle LifecycleConfig `toml:"lifecycle" mapstructure:"lifecycle"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	Alias     AliasConfig     `toml:"alias" mapstructure:"alias"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
}

type CatalogConfig struct {
	Candidates []string `toml:"candidates" mapstructure:"candidates"`
	Prefix     string   `toml:"prefix" mapstructure:"prefix"`
	Suffix     string   `toml:"suffix" mapstructure:"suffix"`
}

type ScanConfig struct {
	Enabled   bool          `toml:"enabled" mapstructure:"enabled"`
	Interval  time.Duration `toml:"interval" mapstructure:"interval"`
	DrainTick time.Duration `toml:"drain_tick" mapstructure:"drain_tick"`
}

type LifecycleConfig struct {
	MaxParallel  int           `toml:"max_parallel" mapstructure:"max_parallel"`
	GracefulWait time.Duration `toml:"graceful_wait" mapstructure:"graceful_wait"`
	KillWait     time.Duration `toml:"kill_wait" mapstructure:"kill_wait"`
	SettleDelay  time.Duration `toml:"settle_delay" mapstructure:"settle_delay"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
	NoColor    bool   `toml:"no_color" mapstructure:"no_color"`
}

type AliasConfig struct {
	SQLitePath string `toml:"sqlite_path" mapstructure:"sqlite_path"`
}

type HistoryConfig struct {
	SQLitePath      string `toml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN     string `toml:"postgres_dsn" mapstructure:"postgres_dsn"`
	ClickHouseAddr  string `toml:"clickhouse_addr" mapstructure:"clickhouse_addr"`
	ClickHouseTable string `toml:"clickhouse_table" mapstructure:"clickhouse_table"`
}

type ServerConfig struct {
	Addr        string `toml:"addr" mapstructure:"addr"`
	BasePath    string `toml:"base_path" mapstructure:"base_path"`
	MetricsAddr string `toml:"metrics_addr" mapstructure:"metrics_addr"`
}

// Default returns the built-in configuration. BaseDir stays empty and must
// be supplied by file or flag.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Candidates: []string{"Telegram.exe", "Telegram Desktop.exe", "TelegramPortable.exe", "Telegram"},
			Prefix:     "telegram",
		},
		NameFilter: "telegram",
		Scan: ScanConfig{
			Enabled:   true,
			Interval:  2 * time.Second,
			DrainTick: state.DefaultDrainTick,
		},
		Lifecycle: LifecycleConfig{
			MaxParallel:  lifecycle.DefaultMaxParallel,
			GracefulWait: lifecycle.DefaultGracefulWait,
			KillWait:     lifecycle.DefaultKillWait,
			SettleDelay:  lifecycle.DefaultSettleDelay,
		},
		Log: LogConfig{Level: "info"},
		History: HistoryConfig{
			ClickHouseTable: "profile_history",
		},
		Server: ServerConfig{Addr: "127.0.0.1:8811"},
	}
}

// Load reads a TOML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	c := Default()
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Normalize()
	return c, nil
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return errors.New("base_dir is required")
	}
	if c.Lifecycle.MaxParallel < 0 {
		return fmt.Errorf("lifecycle.max_parallel must be >= 0, got %d", c.Lifecycle.MaxParallel)
	}
	if c.Scan.Interval < 0 || c.Scan.DrainTick < 0 {
		return errors.New("scan intervals must not be negative")
	}
	if c.History.ClickHouseAddr != "" && c.History.ClickHouseTable == "" {
		return errors.New("history.clickhouse_table is required with history.clickhouse_addr")
	}
	return nil
}

// Normalize clamps advisory values to their documented floors and fills
// zero durations with defaults.
func (c *Config) Normalize() {
	c.Scan.Interval = scanner.ClampInterval(c.Scan.Interval)
	if c.Scan.DrainTick <= 0 {
		c.Scan.DrainTick = state.DefaultDrainTick
	}
	if c.Lifecycle.MaxParallel < 1 {
		c.Lifecycle.MaxParallel = lifecycle.DefaultMaxParallel
	}
	if c.Lifecycle.GracefulWait <= 0 {
		c.Lifecycle.GracefulWait = lifecycle.DefaultGracefulWait
	}
	if c.Lifecycle.KillWait <= 0 {
		c.Lifecycle.KillWait = lifecycle.DefaultKillWait
	}
	if c.Lifecycle.SettleDelay <= 0 {
		c.Lifecycle.SettleDelay = lifecycle.DefaultSettleDelay
	}
}

// CatalogOptions maps the catalog section onto discovery options.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		Candidates: c.Catalog.Candidates,
		Prefix:     c.Catalog.Prefix,
		Suffix:     c.Catalog.Suffix,
	}
}

// LoggerConfig maps the log section onto the logger package config.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Dir:        c.Log.Dir,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
		NoColor:    c.Log.NoColor,
	}
}
