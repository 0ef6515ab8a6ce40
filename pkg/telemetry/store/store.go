package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dgenlabs/relay/pkg/telemetry"
)

// Config controls store connection and caching behavior.
type Config struct {
	// ConnectAttempts is how many times Initialize pings the primary
	// backend before giving up and entering fallback mode.
	ConnectAttempts int

	// ConnectDelay is the fixed pause between connection attempts.
	ConnectDelay time.Duration

	// ConnectTimeout bounds each individual ping.
	ConnectTimeout time.Duration

	// MetricsCacheTTL is how long an aggregate snapshot stays fresh.
	MetricsCacheTTL time.Duration
}

// DefaultConfig returns the standard store configuration.
func DefaultConfig() Config {
	return Config{
		ConnectAttempts: 3,
		ConnectDelay:    2 * time.Second,
		ConnectTimeout:  5 * time.Second,
		MetricsCacheTTL: 5 * time.Minute,
	}
}

// Store records telemetry events to a primary backend and fails over to
// append-only CSV flat files when the backend becomes unreachable. The
// failover is one-way: once a write fails, the store stays on the fallback
// path until restart, so no event is ever dropped waiting on a dead backend.
type Store struct {
	cfg      Config
	backend  Backend
	fallback *FallbackWriter
	logger   *slog.Logger

	fallbackActive atomic.Bool

	cacheMu      sync.Mutex
	cached       telemetry.AggregateMetrics
	cacheExpires time.Time

	// nowFunc is replaced in tests.
	nowFunc func() time.Time
}

// New creates a store over the given primary backend and fallback writer.
// Call Initialize before recording events.
func New(backend Backend, fallback *FallbackWriter, cfg Config) *Store {
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 1
	}
	return &Store{
		cfg:      cfg,
		backend:  backend,
		fallback: fallback,
		logger:   slog.Default().With("component", "telemetry-store"),
		nowFunc:  time.Now,
	}
}

// Initialize verifies the primary backend is reachable, retrying with a
// fixed delay. If every attempt fails the store enters fallback mode and
// Initialize still returns nil: telemetry degrades, the service runs.
func (s *Store) Initialize(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		err := s.backend.Ping(pingCtx)
		cancel()
		if err == nil {
			s.logger.Info("telemetry backend connected",
				"backend", s.backend.Name(), "attempt", attempt)
			return nil
		}
		lastErr = err
		s.logger.Warn("telemetry backend unreachable",
			"backend", s.backend.Name(), "attempt", attempt, "error", err)

		if attempt < s.cfg.ConnectAttempts {
			select {
			case <-time.After(s.cfg.ConnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	s.fallbackActive.Store(true)
	s.logger.Error("telemetry backend unavailable, switching to flat-file fallback",
		"backend", s.backend.Name(), "dir", s.fallback.Dir(), "error", lastErr)
	return nil
}

// FallbackActive reports whether the store has switched to flat files.
func (s *Store) FallbackActive() bool {
	return s.fallbackActive.Load()
}

// Record persists one event. While connected it writes to the primary
// backend; the first write error flips the store to fallback mode and the
// same event is re-routed to the flat file, so the trigger event is not
// lost. Returns an error only if the fallback write also fails.
func (s *Store) Record(ctx context.Context, ev *telemetry.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.nowFunc().UTC()
	}

	if !s.fallbackActive.Load() {
		err := s.backend.Insert(ctx, ev)
		if err == nil {
			return nil
		}
		if s.fallbackActive.CompareAndSwap(false, true) {
			s.logger.Error("telemetry write failed, switching to flat-file fallback",
				"backend", s.backend.Name(), "event_id", ev.ID, "error", err)
		}
	}

	if err := s.fallback.Write(ev); err != nil {
		s.logger.Error("telemetry fallback write failed", "event_id", ev.ID, "error", err)
		return err
	}
	return nil
}

// RecordLifecycle records a service lifecycle event (startup, shutdown,
// connection state changes) through the same dual write path.
func (s *Store) RecordLifecycle(ctx context.Context, kind, status, message string, attrs map[string]any) error {
	extra := map[string]any{"status": status}
	if message != "" {
		extra["message"] = message
	}
	for k, v := range attrs {
		extra[k] = v
	}
	ev := &telemetry.Event{
		ID:        uuid.NewString(),
		EventType: telemetry.LifecycleEventType(kind),
		RequestID: uuid.NewString(),
		Timestamp: s.nowFunc().UTC(),
		Metadata: telemetry.Metadata{
			TargetService: "relay",
			Extra:         extra,
		},
	}
	return s.Record(ctx, ev)
}

// AggregateMetrics returns a snapshot of derived metrics, cached for the
// configured TTL. Aggregates come from whichever path is active; a compute
// failure degrades to a zero-valued snapshot with backend_status "error"
// rather than failing the caller.
func (s *Store) AggregateMetrics(ctx context.Context) telemetry.AggregateMetrics {
	now := s.nowFunc()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if now.Before(s.cacheExpires) {
		return s.cached
	}

	m := s.computeMetrics(ctx, now)
	s.cached = m
	s.cacheExpires = now.Add(s.cfg.MetricsCacheTTL)
	return m
}

func (s *Store) computeMetrics(ctx context.Context, now time.Time) telemetry.AggregateMetrics {
	var (
		stats *Stats
		err   error
	)
	status := "connected"
	if s.fallbackActive.Load() {
		status = "fallback"
		stats, err = s.fallback.Stats(ctx, now)
	} else {
		stats, err = s.backend.Stats(ctx, now)
	}
	if err != nil {
		s.logger.Error("aggregate metrics computation failed", "error", err)
		return telemetry.AggregateMetrics{BackendStatus: "error"}
	}

	m := telemetry.AggregateMetrics{
		RequestsTotal:    stats.TerminalTotal,
		RequestsLastHour: stats.TerminalLastHour,
		AvgLatencyMs:     stats.AvgLatencyMs,
		TokenUsageTotal:  stats.TokensTotal,
		BackendStatus:    status,
	}
	if stats.TerminalTotal > 0 {
		m.ErrorRate = float64(stats.Failures) / float64(stats.TerminalTotal)
	}
	return m
}

// HealthCheck reports the store's connection state. In fallback mode the
// primary is not probed; the switch is permanent for this process.
func (s *Store) HealthCheck(ctx context.Context) telemetry.HealthStatus {
	if s.fallbackActive.Load() {
		return telemetry.HealthStatus{Connected: false, FallbackActive: true}
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	start := time.Now()
	if err := s.backend.Ping(pingCtx); err != nil {
		return telemetry.HealthStatus{Connected: false, Error: err.Error()}
	}
	elapsed := time.Since(start)
	return telemetry.HealthStatus{
		Connected:      true,
		ResponseTimeMs: float64(elapsed.Microseconds()) / 1000.0,
	}
}

// PruneBefore removes events older than cutoff from the primary backend
// (when connected) and stale fallback day files. Returns rows deleted from
// the primary and files removed from the fallback directory.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (rows int64, files int, err error) {
	if !s.fallbackActive.Load() {
		rows, err = s.backend.DeleteBefore(ctx, cutoff)
		if err != nil {
			return rows, 0, err
		}
	}
	files, err = s.fallback.PruneBefore(cutoff)
	return rows, files, err
}

// Close releases the primary backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
