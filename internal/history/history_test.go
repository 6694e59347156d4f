package history

import (
	"testing"

	"github.com/loykin/herdsman/internal/state"
)

func TestFromChangeStart(t *testing.T) {
	e := FromChange(state.Change{Key: "/k", Name: "Instance 1", OldPID: 0, NewPID: 42})
	if e.Type != EventStart {
		t.Fatalf("want start, got %s", e.Type)
	}
	if e.PID != 42 || e.OldPID != 0 {
		t.Fatalf("bad pids: %+v", e)
	}
	if e.OccurredAt.IsZero() {
		t.Fatal("occurred_at not set")
	}
}

func TestFromChangeStop(t *testing.T) {
	e := FromChange(state.Change{Key: "/k", Name: "Instance 1", OldPID: 42, NewPID: 0})
	if e.Type != EventStop {
		t.Fatalf("want stop, got %s", e.Type)
	}
	if e.PID != 42 {
		t.Fatalf("stop event should carry the pid that went away: %+v", e)
	}
}

func TestFromChangePidSwap(t *testing.T) {
	// a pid replaced by another pid is a start of the new one
	e := FromChange(state.Change{Key: "/k", Name: "Instance 1", OldPID: 42, NewPID: 43})
	if e.Type != EventStart || e.PID != 43 || e.OldPID != 42 {
		t.Fatalf("swap mapped wrong: %+v", e)
	}
}
