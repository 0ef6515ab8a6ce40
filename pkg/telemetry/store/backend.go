package store

import (
	"context"
	"time"

	"dgenlabs/relay/pkg/telemetry"
)

// Stats is the raw aggregate computed by a backend over its recorded
// events. The store derives the caller-facing AggregateMetrics from it.
type Stats struct {
	// TerminalTotal is the count of terminal events (success + failure).
	TerminalTotal int64

	// TerminalLastHour is the count of terminal events in the trailing hour.
	TerminalLastHour int64

	// Successes is the count of completion_success events.
	Successes int64

	// Failures is the count of request_failure events.
	Failures int64

	// AvgLatencyMs is the mean latency over completion_success events.
	AvgLatencyMs float64

	// TokensTotal is the sum of total_tokens over completion_success events.
	TokensTotal int64
}

// Backend is a primary telemetry backend: a structured store reachable by
// the process, exposing insert, aggregate, and pruning operations.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Insert persists one telemetry event. Lifecycle events (event type
	// prefixed "lifecycle_") go to the lifecycle log; everything else to
	// the request event collection.
	Insert(ctx context.Context, ev *telemetry.Event) error

	// Stats computes aggregate statistics over request events, with
	// "last hour" relative to now.
	Stats(ctx context.Context, now time.Time) (*Stats, error)

	// DeleteBefore removes events older than cutoff from both collections.
	// Returns the number of rows deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Name returns the backend type ("sqlite", "postgres", "memory").
	Name() string

	// Close releases resources held by the backend.
	Close() error
}
