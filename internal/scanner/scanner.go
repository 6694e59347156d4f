package scanner

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/matcher"
	"github.com/loykin/herdsman/internal/metrics"
	"github.com/loykin/herdsman/internal/procscan"
)

// MinInterval is the floor applied to the scan interval to bound CPU usage.
const MinInterval = 200 * time.Millisecond

// snapshotBuffer bounds the handoff channel. The producer never blocks on a
// full channel; it drops the snapshot instead (the next cycle supersedes it).
const snapshotBuffer = 16

// Settings is the scanner's advisory configuration. It is published as one
// immutable value through an atomic pointer and read fresh once per
// iteration. Reads are eventually consistent: a swap becomes visible by the
// next cycle at the latest. This is deliberate; the scanner never takes a
// lock for configuration.
type Settings struct {
	Enabled    bool          `json:"enabled"`
	Interval   time.Duration `json:"interval"`
	NameFilter string        `json:"name_filter"`
}

// Scanner produces periodic pid snapshots on a dedicated goroutine,
// decoupled from whoever consumes them.
type Scanner struct {
	inspector procscan.Inspector
	profiles  func() []*catalog.Profile
	settings  atomic.Pointer[Settings]
	out       chan matcher.Snapshot
	logger    *slog.Logger
}

// New builds a scanner. profiles is called once per cycle and must return
// the current catalog; inspector supplies the live process list.
func New(inspector procscan.Inspector, profiles func() []*catalog.Profile, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{
		inspector: inspector,
		profiles:  profiles,
		out:       make(chan matcher.Snapshot, snapshotBuffer),
		logger:    logger,
	}
	s.settings.Store(&Settings{Enabled: true, Interval: 2 * time.Second})
	return s
}

// Snapshots is the drop-tolerant handoff channel. A missed snapshot is
// harmless; the next cycle produces a fresh one.
func (s *Scanner) Snapshots() <-chan matcher.Snapshot { return s.out }

// UpdateSettings atomically swaps the advisory settings. The running loop
// picks them up on its next iteration.
func (s *Scanner) UpdateSettings(st Settings) {
	s.settings.Store(&st)
}

// Settings returns the currently published settings value.
func (s *Scanner) Settings() Settings { return *s.settings.Load() }

// ClampInterval applies the MinInterval floor.
func ClampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Run executes the scan loop until ctx is cancelled. Cancellation is
// cooperative and checked once per iteration, so shutdown latency is
// bounded by one sleep interval.
func (s *Scanner) Run(ctx context.Context) {
	for {
		st := *s.settings.Load()
		if st.Enabled {
			s.scanOnce(ctx, st)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(ClampInterval(st.Interval)):
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context, st Settings) {
	profiles := s.profiles()
	var snap matcher.Snapshot
	records, err := s.inspector.Processes(ctx, st.NameFilter)
	if err != nil {
		// degraded mode: all pids unknown, not an error
		s.logger.Debug("process inspection unavailable", "error", err)
		snap = matcher.Unknown(profiles)
	} else {
		snap = matcher.Match(profiles, records)
	}
	metrics.IncScanCycle()
	select {
	case s.out <- snap:
	default:
		metrics.IncSnapshotDrop()
		s.logger.Debug("snapshot dropped, consumer behind")
	}
}
