package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Limiter implements a fixed-window request counter per client key.
//
// Each key owns one bucket covering a fixed window (60 seconds by default).
// The first request in a window resets the bucket; subsequent requests
// increment it until the limit is reached. A rejected request learns how
// long until the window rolls over via Decision.RetryAfter.
//
// The fixed window admits up to 2x the limit across a window boundary in
// the worst case. That is accepted here: the gate protects the downstream
// pool from sustained abuse, not from a single boundary burst.
//
// # Thread Safety
//
// Limiter is safe for concurrent use. The limit itself is atomic so it can
// be updated at runtime by config reload without blocking admissions.
type Limiter struct {
	limit  atomic.Int64
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	// nowFunc is replaced in tests.
	nowFunc func() time.Time
}

// bucket is one client's counter for the current window.
type bucket struct {
	start time.Time
	count int64
}

// Decision is the outcome of one admission check.
type Decision struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Limit is the configured per-window limit.
	Limit int64

	// Remaining is how many requests remain in the current window.
	Remaining int64

	// RetryAfter is how long until the window rolls over. Only set on
	// rejection.
	RetryAfter time.Duration
}

// DefaultLimit is the per-window request cap used when none is configured.
const DefaultLimit = 120

// DefaultWindow is the fixed window duration.
const DefaultWindow = 60 * time.Second

// New creates a limiter allowing limit requests per key per window.
// A non-positive limit disables the gate: every request is admitted.
func New(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		window:  window,
		buckets: make(map[string]*bucket),
		nowFunc: time.Now,
	}
	l.limit.Store(int64(limit))
	return l
}

// Admit records one request for key and reports whether it is allowed.
func (l *Limiter) Admit(key string) Decision {
	limit := l.limit.Load()
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: -1}
	}

	now := l.nowFunc()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked(now)

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= l.window {
		l.buckets[key] = &bucket{start: now, count: 1}
		return Decision{Allowed: true, Limit: limit, Remaining: limit - 1}
	}

	if b.count < limit {
		b.count++
		return Decision{Allowed: true, Limit: limit, Remaining: limit - b.count}
	}

	return Decision{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		RetryAfter: l.window - now.Sub(b.start),
	}
}

// SetLimit replaces the per-window limit. In-flight windows keep their
// counts; the new limit applies to the next admission check.
func (l *Limiter) SetLimit(limit int) {
	l.limit.Store(int64(limit))
}

// Limit returns the current per-window limit.
func (l *Limiter) Limit() int {
	return int(l.limit.Load())
}

// ActiveKeys returns the number of live buckets. Used by usage reporting.
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictLocked drops buckets whose window has expired. Keeps memory bounded
// by the set of clients seen in the last window rather than ever seen.
func (l *Limiter) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.start) >= l.window {
			delete(l.buckets, key)
		}
	}
}
