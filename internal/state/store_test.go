package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loykin/herdsman/internal/catalog"
	"github.com/loykin/herdsman/internal/matcher"
)

func twoProfiles() []*catalog.Profile {
	return []*catalog.Profile{
		{Key: "/base/instance 1", Name: "Instance 1"},
		{Key: "/base/instance 2", Name: "Instance 2"},
	}
}

func TestApplyEmitsDiffOnly(t *testing.T) {
	s := New(nil)
	s.ReplaceProfiles(twoProfiles())

	var mu sync.Mutex
	var changes []Change
	s.Subscribe(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	snap := matcher.Snapshot{"/base/instance 1": 100, "/base/instance 2": 0}
	s.Apply(snap)

	mu.Lock()
	n := len(changes)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("want 1 change, got %d", n)
	}
	if changes[0].NewPID != 100 || changes[0].OldPID != 0 {
		t.Fatalf("unexpected change: %+v", changes[0])
	}
}

func TestApplySameSnapshotTwiceIsIdempotent(t *testing.T) {
	s := New(nil)
	s.ReplaceProfiles(twoProfiles())

	var mu sync.Mutex
	count := 0
	s.Subscribe(func(Change) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	snap := matcher.Snapshot{"/base/instance 1": 100, "/base/instance 2": 200}
	s.Apply(snap)
	s.Apply(snap)

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Fatalf("second apply must emit nothing: got %d notifications", count)
	}
}

func TestApplyFullReplace(t *testing.T) {
	s := New(nil)
	s.ReplaceProfiles(twoProfiles())
	s.Apply(matcher.Snapshot{"/base/instance 1": 100, "/base/instance 2": 200})
	s.Apply(matcher.Snapshot{"/base/instance 1": 0, "/base/instance 2": 200})

	p, ok := s.Profile("/base/instance 1")
	if !ok || p.PID != 0 {
		t.Fatalf("pid not cleared: %+v", p)
	}
	if s.Running() != 1 {
		t.Fatalf("want 1 running, got %d", s.Running())
	}
}

func TestReplaceProfilesDropsStaleKeys(t *testing.T) {
	s := New(nil)
	s.ReplaceProfiles(twoProfiles())
	s.Apply(matcher.Snapshot{"/base/instance 1": 100})

	s.ReplaceProfiles([]*catalog.Profile{{Key: "/base/instance 3", Name: "Instance 3"}})
	if _, ok := s.Profile("/base/instance 1"); ok {
		t.Fatal("stale key survived catalog replacement")
	}
	ps := s.Profiles()
	if len(ps) != 1 || ps[0].Key != "/base/instance 3" {
		t.Fatalf("unexpected profiles: %+v", ps)
	}
}

func TestConsumeDrainsFIFO(t *testing.T) {
	s := New(nil)
	s.SetDrainTick(5 * time.Millisecond)
	s.ReplaceProfiles(twoProfiles())

	var mu sync.Mutex
	var pids []int
	s.Subscribe(func(c Change) {
		if c.Key == "/base/instance 1" {
			mu.Lock()
			pids = append(pids, c.NewPID)
			mu.Unlock()
		}
	})

	ch := make(chan matcher.Snapshot, 4)
	// a transient transition 0 -> 100 -> 0 must not be collapsed to "latest only"
	ch <- matcher.Snapshot{"/base/instance 1": 100}
	ch <- matcher.Snapshot{"/base/instance 1": 0}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Consume(ctx, ch)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(pids)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transitions lost: saw %v", pids)
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if pids[0] != 100 || pids[1] != 0 {
		t.Fatalf("not FIFO: %v", pids)
	}
}
