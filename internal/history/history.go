package history

import (
	"context"
	"time"

	"github.com/loykin/herdsman/internal/state"
)

// EventType defines the kind of state transition.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

// Event is one profile state transition exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	PID        int       `json:"pid"`
	OldPID     int       `json:"old_pid"`
}

// Sink is a destination for transition events (audit/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// FromChange maps a state-store change notification onto an Event.
// A change to a nonzero pid is a start; a change to zero is a stop.
func FromChange(c state.Change) Event {
	typ := EventStop
	pid := c.OldPID
	if c.NewPID != 0 {
		typ = EventStart
		pid = c.NewPID
	}
	return Event{
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Key:        c.Key,
		Name:       c.Name,
		PID:        pid,
		OldPID:     c.OldPID,
	}
}
