package herdsman

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/loykin/herdsman/internal/alias"
	aliassqlite "github.com/loykin/herdsman/internal/alias/sqlite"
	"github.com/loykin/herdsman/internal/catalog"
	cfg "github.com/loykin/herdsman/internal/config"
	"github.com/loykin/herdsman/internal/history"
	"github.com/loykin/herdsman/internal/history/clickhouse"
	"github.com/loykin/herdsman/internal/history/postgres"
	histsqlite "github.com/loykin/herdsman/internal/history/sqlite"
	"github.com/loykin/herdsman/internal/lifecycle"
	"github.com/loykin/herdsman/internal/logger"
	"github.com/loykin/herdsman/internal/manager"
	"github.com/loykin/herdsman/internal/metrics"
	"github.com/loykin/herdsman/internal/scanner"
	iapi "github.com/loykin/herdsman/internal/server"
	"github.com/loykin/herdsman/internal/wintitle"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Profile = catalog.Profile

type ProfileStatus = manager.ProfileStatus

type Result = lifecycle.Result

type ProfileResult = lifecycle.ProfileResult

type ScanSettings = scanner.Settings

type HistorySink = history.Sink

type HistoryEvent = history.Event

type AliasStore = alias.Store

type Titler = wintitle.Titler

// Supervisor is a thin facade over internal/manager.Manager.
// It provides a stable public API for embedding.

type Supervisor struct {
	inner  *manager.Manager
	closer []func() error
}

// DefaultConfig returns the built-in configuration; base_dir must still be set.
func DefaultConfig() *Config { return cfg.Default() }

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewLogger builds the slog logger described by the config's log section.
func NewLogger(c *Config) *slog.Logger { return logger.New(c.LoggerConfig()) }

// New assembles a supervisor from a validated config: catalogue discovery
// options, lifecycle timeouts, the alias store and any configured history
// sinks. Call Close when done.
func New(c *Config, log *slog.Logger) (*Supervisor, error) {
	if c == nil {
		return nil, errors.New("nil config")
	}
	m := manager.New(manager.Options{
		BaseDir:     c.BaseDir,
		Catalog:     c.CatalogOptions(),
		NameFilter:  c.NameFilter,
		Interval:    c.Scan.Interval,
		DrainTick:   c.Scan.DrainTick,
		MaxParallel: c.Lifecycle.MaxParallel,
		Logger:      log,
	})
	ctrl := m.Controller()
	ctrl.GracefulWait = c.Lifecycle.GracefulWait
	ctrl.KillWait = c.Lifecycle.KillWait
	ctrl.SettleDelay = c.Lifecycle.SettleDelay
	m.UpdateScan(scanner.Settings{
		Enabled:    c.Scan.Enabled,
		Interval:   c.Scan.Interval,
		NameFilter: c.NameFilter,
	})

	s := &Supervisor{inner: m}
	if c.Alias.SQLitePath != "" {
		store, err := aliassqlite.New(c.Alias.SQLitePath)
		if err != nil {
			return nil, err
		}
		m.SetAliasStore(store)
		s.closer = append(s.closer, store.Close)
	}

	var sinks []history.Sink
	if c.History.SQLitePath != "" {
		sink, err := histsqlite.New(c.History.SQLitePath)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
		s.closer = append(s.closer, sink.Close)
	}
	if c.History.PostgresDSN != "" {
		sink, err := postgres.New(c.History.PostgresDSN)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
		s.closer = append(s.closer, sink.Close)
	}
	if c.History.ClickHouseAddr != "" {
		sink, err := clickhouse.New(c.History.ClickHouseAddr, c.History.ClickHouseTable)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if err := sink.EnsureTable(context.Background()); err != nil {
			_ = sink.Close()
			_ = s.Close()
			return nil, err
		}
		sinks = append(sinks, sink)
		s.closer = append(s.closer, sink.Close)
	}
	if len(sinks) > 0 {
		m.SetHistorySinks(sinks...)
	}
	return s, nil
}

// SetTitler injects a window-title capability (the default is a no-op).
func (s *Supervisor) SetTitler(t Titler) { s.inner.SetTitler(t) }

// SetHistorySinks replaces the configured transition sinks.
func (s *Supervisor) SetHistorySinks(sinks ...HistorySink) { s.inner.SetHistorySinks(sinks...) }

// SetAliasStore replaces the alias store.
func (s *Supervisor) SetAliasStore(st AliasStore) { s.inner.SetAliasStore(st) }

func (s *Supervisor) Rescan() (int, error) { return s.inner.Rescan() }
func (s *Supervisor) Start()               { s.inner.Start() }
func (s *Supervisor) Stop()                { s.inner.Stop() }

func (s *Supervisor) Profiles(ctx context.Context) []ProfileStatus { return s.inner.Profiles(ctx) }
func (s *Supervisor) Profile(ctx context.Context, key string) (ProfileStatus, error) {
	return s.inner.Profile(ctx, key)
}

func (s *Supervisor) Open(key string) (Result, error) { return s.inner.Open(key) }
func (s *Supervisor) Terminate(ctx context.Context, key string, force bool) (Result, error) {
	return s.inner.Terminate(ctx, key, force)
}
func (s *Supervisor) Restart(ctx context.Context, key string) (Result, error) {
	return s.inner.Restart(ctx, key)
}
func (s *Supervisor) OpenAll(ctx context.Context, maxParallel int) []ProfileResult {
	return s.inner.OpenAll(ctx, maxParallel)
}
func (s *Supervisor) KillAll(ctx context.Context) []ProfileResult { return s.inner.KillAll(ctx) }

func (s *Supervisor) SetAlias(ctx context.Context, key, name string) error {
	return s.inner.SetAlias(ctx, key, name)
}
func (s *Supervisor) Identify(ctx context.Context, key string) (string, error) {
	return s.inner.Identify(ctx, key)
}

func (s *Supervisor) UpdateScan(st ScanSettings) { s.inner.UpdateScan(st) }
func (s *Supervisor) ScanSettings() ScanSettings { return s.inner.ScanSettings() }

// Close stops the background loops and closes owned stores and sinks.
func (s *Supervisor) Close() error {
	s.inner.Stop()
	var first error
	for _, c := range s.closer {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewHTTPServer starts an HTTP server exposing the internal API using the given supervisor.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
