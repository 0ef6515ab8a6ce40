package store

import (
	"context"
	"sync"
	"time"

	"dgenlabs/relay/pkg/telemetry"
)

// MemoryBackend keeps telemetry events in process memory. It backs tests
// and zero-dependency runs; nothing survives a restart.
type MemoryBackend struct {
	mu        sync.Mutex
	events    []telemetry.Event
	lifecycle []telemetry.Event
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Name returns "memory".
func (b *MemoryBackend) Name() string { return "memory" }

// Ping always succeeds.
func (b *MemoryBackend) Ping(ctx context.Context) error { return nil }

// Insert appends a copy of the event.
func (b *MemoryBackend) Insert(ctx context.Context, ev *telemetry.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if isLifecycle(ev.EventType) {
		b.lifecycle = append(b.lifecycle, *ev)
	} else {
		b.events = append(b.events, *ev)
	}
	return nil
}

// Stats computes aggregate statistics over request events.
func (b *MemoryBackend) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hourAgo := now.Add(-time.Hour)
	var s Stats
	var latencySum float64
	for i := range b.events {
		ev := &b.events[i]
		switch ev.EventType {
		case telemetry.EventCompletionSuccess:
			s.Successes++
			latencySum += ev.Metadata.LatencyMs
			if ev.Metadata.TotalTokens != nil {
				s.TokensTotal += int64(*ev.Metadata.TotalTokens)
			}
		case telemetry.EventRequestFailure:
			s.Failures++
		default:
			continue
		}
		s.TerminalTotal++
		if !ev.Timestamp.Before(hourAgo) {
			s.TerminalLastHour++
		}
	}
	if s.Successes > 0 {
		s.AvgLatencyMs = latencySum / float64(s.Successes)
	}
	return &s, nil
}

// DeleteBefore removes events older than cutoff.
func (b *MemoryBackend) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var deleted int64
	prune := func(in []telemetry.Event) []telemetry.Event {
		out := in[:0]
		for _, ev := range in {
			if ev.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			out = append(out, ev)
		}
		return out
	}
	b.events = prune(b.events)
	b.lifecycle = prune(b.lifecycle)
	return deleted, nil
}

// Close is a no-op.
func (b *MemoryBackend) Close() error { return nil }

// Events returns a copy of the recorded request events. Test helper.
func (b *MemoryBackend) Events() []telemetry.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]telemetry.Event, len(b.events))
	copy(out, b.events)
	return out
}

// LifecycleEvents returns a copy of the recorded lifecycle events. Test helper.
func (b *MemoryBackend) LifecycleEvents() []telemetry.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]telemetry.Event, len(b.lifecycle))
	copy(out, b.lifecycle)
	return out
}
