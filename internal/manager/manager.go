package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/herdsman/internal/alias"
	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/history"
	"github.com/loykin/herdsman/internal/lifecycle"
	"github.com/loykin/herdsman/internal/procscan"
	"github.com/loykin/herdsman/internal/scanner"
	"github.com/loykin/herdsman/internal/state"
	"github.com/loykin/herdsman/internal/wintitle"
)

// sinkTimeout bounds each history export so a slow sink cannot stall the
// exporter goroutine indefinitely.
const sinkTimeout = 5 * time.Second

// Options configures a Manager. Zero values fall back to defaults; the
// inspector defaults to the gopsutil implementation.
type Options struct {
	BaseDir     string
	Catalog     catalog.Options
	NameFilter  string
	Interval    time.Duration
	DrainTick   time.Duration
	MaxParallel int
	Inspector   procscan.Inspector
	Launcher    lifecycle.Launcher
	Terminator  lifecycle.Terminator
	Logger      *slog.Logger
}

// ProfileStatus is the externally visible view of one profile. State is
// derived from the pid, never stored: between a successful open and the
// next confirming scan the profile still reports "stopped".
type ProfileStatus struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
	Dir   string `json:"dir"`
	Exe   string `json:"exe"`
	PID   int    `json:"pid,omitempty"`
	State string `json:"state"`
}

// Manager wires discovery, scanning, state and lifecycle together and owns
// the two background goroutines (scanner producer, snapshot consumer).
type Manager struct {
	baseDir     string
	catOpts     catalog.Options
	maxParallel int
	logger      *slog.Logger

	store *state.Store
	scan  *scanner.Scanner
	ctrl  *lifecycle.Controller

	mu      sync.Mutex
	aliases alias.Store
	sinks   []history.Sink
	titler  wintitle.Titler
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inspector := opts.Inspector
	if inspector == nil {
		inspector = procscan.GopsInspector{}
	}
	maxParallel := opts.MaxParallel
	if maxParallel < 1 {
		maxParallel = lifecycle.DefaultMaxParallel
	}

	st := state.New(logger)
	st.SetDrainTick(opts.DrainTick)
	sc := scanner.New(inspector, func() []*catalog.Profile {
		ps := st.Profiles()
		out := make([]*catalog.Profile, 0, len(ps))
		for i := range ps {
			p := ps[i]
			out = append(out, &p)
		}
		return out
	}, logger)
	sc.UpdateSettings(scanner.Settings{
		Enabled:    true,
		Interval:   opts.Interval,
		NameFilter: opts.NameFilter,
	})

	ctrl := lifecycle.New(logger)
	if opts.Launcher != nil && opts.Terminator != nil {
		ctrl = lifecycle.NewWith(opts.Launcher, opts.Terminator, logger)
	}

	m := &Manager{
		baseDir:     opts.BaseDir,
		catOpts:     opts.Catalog,
		maxParallel: maxParallel,
		logger:      logger,
		store:       st,
		scan:        sc,
		ctrl:        ctrl,
		titler:      wintitle.Noop{},
	}
	st.Subscribe(m.exportChange)
	return m
}

// SetAliasStore attaches the external alias collaborator.
func (m *Manager) SetAliasStore(s alias.Store) {
	m.mu.Lock()
	m.aliases = s
	m.mu.Unlock()
}

// SetHistorySinks configures transition-event sinks. Passing none clears
// the list.
func (m *Manager) SetHistorySinks(sinks ...history.Sink) {
	m.mu.Lock()
	m.sinks = append([]history.Sink(nil), sinks...)
	m.mu.Unlock()
}

// SetTitler injects the window-title capability; the default is the no-op.
func (m *Manager) SetTitler(t wintitle.Titler) {
	m.mu.Lock()
	if t == nil {
		t = wintitle.Noop{}
	}
	m.titler = t
	m.mu.Unlock()
}

// Controller exposes the lifecycle controller for timeout tuning.
func (m *Manager) Controller() *lifecycle.Controller { return m.ctrl }

// UpdateScan swaps the scanner's advisory settings.
func (m *Manager) UpdateScan(s scanner.Settings) { m.scan.UpdateSettings(s) }

// ScanSettings returns the currently published scanner settings.
func (m *Manager) ScanSettings() scanner.Settings { return m.scan.Settings() }

// Rescan rediscovers profiles and replaces the whole catalog. A missing or
// unreadable base directory degrades to an empty catalog; the error is
// reported but not fatal.
func (m *Manager) Rescan() (int, error) {
	profiles, err := catalog.Discover(m.baseDir, m.catOpts)
	if err != nil {
		m.logger.Warn("discovery failed, catalog empty", "base_dir", m.baseDir, "error", err)
		m.store.ReplaceProfiles(nil)
		return 0, err
	}
	m.store.ReplaceProfiles(profiles)
	m.logger.Info("catalog replaced", "profiles", len(profiles))
	return len(profiles), nil
}

// Start launches the scanner and the snapshot consumer. It is a no-op when
// already running.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.scan.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.store.Consume(ctx, m.scan.Snapshots())
	}()
}

// Stop cancels the background goroutines and waits for them. Shutdown
// latency is bounded by one scan interval.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

// Profiles lists the current catalog with derived state and aliases.
func (m *Manager) Profiles(ctx context.Context) []ProfileStatus {
	m.mu.Lock()
	aliases := m.aliases
	m.mu.Unlock()
	var known map[string]string
	if aliases != nil {
		known, _ = aliases.All(ctx)
	}
	ps := m.store.Profiles()
	out := make([]ProfileStatus, 0, len(ps))
	for _, p := range ps {
		st := "stopped"
		if p.PID != 0 {
			st = "running"
		}
		out = append(out, ProfileStatus{
			Key:   p.Key,
			Name:  p.Name,
			Alias: known[p.Key],
			Dir:   p.Dir,
			Exe:   p.Exe,
			PID:   p.PID,
			State: st,
		})
	}
	return out
}

// Profile returns one profile's status by key.
func (m *Manager) Profile(ctx context.Context, key string) (ProfileStatus, error) {
	for _, p := range m.Profiles(ctx) {
		if p.Key == key {
			return p, nil
		}
	}
	return ProfileStatus{}, fmt.Errorf("unknown profile: %s", key)
}

// Open launches the profile identified by key.
func (m *Manager) Open(key string) (lifecycle.Result, error) {
	p, ok := m.store.Profile(key)
	if !ok {
		return lifecycle.Result{}, fmt.Errorf("unknown profile: %s", key)
	}
	return m.ctrl.Open(p), nil
}

// Terminate stops the profile's known pid. A profile without a pid is
// already stopped, which counts as success.
func (m *Manager) Terminate(ctx context.Context, key string, force bool) (lifecycle.Result, error) {
	p, ok := m.store.Profile(key)
	if !ok {
		return lifecycle.Result{}, fmt.Errorf("unknown profile: %s", key)
	}
	if p.PID == 0 {
		return lifecycle.Result{OK: true, Msg: "not running"}, nil
	}
	return m.ctrl.Terminate(ctx, p.PID, force), nil
}

// Restart terminates (when running) and relaunches the profile.
func (m *Manager) Restart(ctx context.Context, key string) (lifecycle.Result, error) {
	p, ok := m.store.Profile(key)
	if !ok {
		return lifecycle.Result{}, fmt.Errorf("unknown profile: %s", key)
	}
	return m.ctrl.Restart(ctx, p), nil
}

// OpenAll launches every profile in the catalog through the bounded pool.
// maxParallel <= 0 uses the configured bound.
func (m *Manager) OpenAll(ctx context.Context, maxParallel int) []lifecycle.ProfileResult {
	if maxParallel < 1 {
		maxParallel = m.maxParallel
	}
	return m.ctrl.OpenAll(ctx, m.store.Profiles(), maxParallel)
}

// KillAll terminates every profile with a known pid. Confirmation belongs
// to the caller.
func (m *Manager) KillAll(ctx context.Context) []lifecycle.ProfileResult {
	return m.ctrl.KillAll(ctx, m.store.Profiles())
}

// SetAlias stores a display name for the profile. An empty alias deletes
// the entry.
func (m *Manager) SetAlias(ctx context.Context, key, name string) error {
	m.mu.Lock()
	aliases := m.aliases
	m.mu.Unlock()
	if aliases == nil {
		return fmt.Errorf("no alias store configured")
	}
	if _, ok := m.store.Profile(key); !ok {
		return fmt.Errorf("unknown profile: %s", key)
	}
	if name == "" {
		return aliases.Delete(ctx, key)
	}
	return aliases.Set(ctx, key, name)
}

// Identify inspects the running profile's window titles and, when a
// suggestion is found, persists it as the alias. It returns the suggestion
// ("" when nothing usable was visible).
func (m *Manager) Identify(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	titler := m.titler
	m.mu.Unlock()
	p, ok := m.store.Profile(key)
	if !ok {
		return "", fmt.Errorf("unknown profile: %s", key)
	}
	if p.PID == 0 {
		return "", fmt.Errorf("profile not running: %s", p.Name)
	}
	titles, err := titler.TitlesByPID(p.PID)
	if err != nil {
		return "", fmt.Errorf("window title lookup: %w", err)
	}
	suggestion := wintitle.Suggest(titles)
	if suggestion == "" {
		return "", nil
	}
	if err := m.SetAlias(ctx, key, suggestion); err != nil {
		m.logger.Warn("alias persist failed", "name", p.Name, "error", err)
	}
	return suggestion, nil
}

// exportChange fans a state change out to the history sinks off the
// consumer goroutine, best-effort.
func (m *Manager) exportChange(c state.Change) {
	m.mu.Lock()
	sinks := append([]history.Sink(nil), m.sinks...)
	m.mu.Unlock()
	if len(sinks) == 0 {
		return
	}
	e := history.FromChange(c)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		for _, s := range sinks {
			if err := s.Send(ctx, e); err != nil {
				m.logger.Warn("history sink send failed", "name", e.Name, "error", err)
			}
		}
	}()
}
