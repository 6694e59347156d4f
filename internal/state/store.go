package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/matcher"
	"github.com/loykin/herdsman/internal/metrics"
)

// DefaultDrainTick is the consumer's fixed cadence for draining pending
// snapshots, independent of the scan interval.
const DefaultDrainTick = 150 * time.Millisecond

// Change is a per-profile notification emitted when an applied snapshot
// moves a pid. It fires only on a diff, never on every cycle.
type Change struct {
	Key    string
	Name   string
	OldPID int
	NewPID int
}

// Listener receives change notifications on the consumer goroutine.
// Implementations must return quickly; slow exports belong on their own
// goroutine.
type Listener func(Change)

// Store holds the current pid per profile. It has exactly one writer: the
// snapshot-draining consumer. Lifecycle operations read it but request
// changes only through the next scan cycle; the latest applied snapshot is
// always authoritative.
type Store struct {
	mu        sync.RWMutex
	profiles  map[string]*catalog.Profile
	order     []string
	listeners []Listener
	logger    *slog.Logger
	drainTick time.Duration
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		profiles:  make(map[string]*catalog.Profile),
		logger:    logger,
		drainTick: DefaultDrainTick,
	}
}

// SetDrainTick overrides the consumer cadence; values <= 0 keep the default.
func (s *Store) SetDrainTick(d time.Duration) {
	if d > 0 {
		s.drainTick = d
	}
}

// Subscribe registers a change listener. Listeners registered after the
// consumer started may miss earlier changes.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// ReplaceProfiles swaps the whole catalog, as after a rescan. Keys absent
// from the new set are dropped together with their pids.
func (s *Store) ReplaceProfiles(ps []*catalog.Profile) {
	s.mu.Lock()
	s.profiles = make(map[string]*catalog.Profile, len(ps))
	s.order = make([]string, 0, len(ps))
	for _, p := range ps {
		s.profiles[p.Key] = p
		s.order = append(s.order, p.Key)
	}
	s.mu.Unlock()
}

// Profiles returns value copies of all profiles in catalog order.
func (s *Store) Profiles() []catalog.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Profile, 0, len(s.order))
	for _, k := range s.order {
		if p := s.profiles[k]; p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// Profile returns a value copy by key.
func (s *Store) Profile(key string) (catalog.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[key]
	if !ok {
		return catalog.Profile{}, false
	}
	return *p, true
}

// Running counts profiles with a confirmed pid.
func (s *Store) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.profiles {
		if p.PID != 0 {
			n++
		}
	}
	return n
}

// Apply replaces the pid of every profile key present in the snapshot and
// notifies listeners about diffs. It must only be called from the consumer
// goroutine (single-writer contract).
func (s *Store) Apply(snap matcher.Snapshot) {
	var changes []Change
	s.mu.Lock()
	for key, pid := range snap {
		p, ok := s.profiles[key]
		if !ok || p.PID == pid {
			continue
		}
		changes = append(changes, Change{Key: key, Name: p.Name, OldPID: p.PID, NewPID: pid})
		p.PID = pid
	}
	listeners := s.listeners
	running := 0
	for _, p := range s.profiles {
		if p.PID != 0 {
			running++
		}
	}
	s.mu.Unlock()

	metrics.SetRunningProfiles(running)
	for _, c := range changes {
		metrics.RecordStateTransition(stateName(c.OldPID), stateName(c.NewPID))
		s.logger.Info("profile state changed",
			"name", c.Name, "old_pid", c.OldPID, "new_pid", c.NewPID,
			"state", stateName(c.NewPID))
		for _, l := range listeners {
			l(c)
		}
	}
}

// Consume drains pending snapshots in FIFO arrival order on a fixed tick
// until ctx is cancelled. Every pending snapshot is applied, not just the
// latest, so transient state transitions are not silently lost.
func (s *Store) Consume(ctx context.Context, snapshots <-chan matcher.Snapshot) {
	t := time.NewTicker(s.drainTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.drain(snapshots)
		}
	}
}

// drain applies every queued snapshot, oldest first, without blocking.
func (s *Store) drain(snapshots <-chan matcher.Snapshot) {
	for {
		select {
		case snap := <-snapshots:
			s.Apply(snap)
		default:
			return
		}
	}
}

func stateName(pid int) string {
	if pid != 0 {
		return "running"
	}
	return "stopped"
}
