// Package history records supervision events (launch, relaunch, stop) to a
// local sqlite file so restart behavior can be audited after the fact.
package history

import (
	"context"
	"time"
)

type EventKind string

const (
	EventStart   EventKind = "start"
	EventRestart EventKind = "restart"
	EventStop    EventKind = "stop"
)

// Event is one supervision state change for a named service.
type Event struct {
	OccurredAt time.Time
	Service    string
	PID        int
	Kind       EventKind
	Detail     string
}

// Sink persists events. Implementations must tolerate concurrent senders.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}
