// Package usage owns the durable, append-only log of inference events
// that backs all sliding-window rate limiting.
package usage

import (
	"context"
	"time"
)

// Event is one recorded inference. Events are written exactly once per
// successful non-empty completion and are never mutated; the retention
// sweep is the only thing that deletes them.
type Event struct {
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for persisting usage events.
type Store interface {
	// Record appends one event with the current UTC timestamp. The event
	// is durable once Record returns nil; callers treat this as the
	// logging commit point.
	Record(ctx context.Context, userID, provider string) error

	// CountSince counts events with timestamp strictly after since.
	// userID == "" means all users (global scope); provider == "" means
	// all providers. Must reflect every previously committed Record.
	CountSince(ctx context.Context, userID, provider string, since time.Time) (int64, error)

	// PurgeOlderThan deletes events with timestamp <= cutoff and returns
	// how many were removed. Re-running with the same cutoff is a no-op.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping checks the backing storage is reachable.
	Ping(ctx context.Context) error
}
