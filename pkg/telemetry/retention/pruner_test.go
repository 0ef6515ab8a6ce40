package retention

import (
	"context"
	"testing"
	"time"

	"dgenlabs/relay/pkg/telemetry"
	"dgenlabs/relay/pkg/telemetry/store"
)

func TestPruneRemovesOnlyExpiredRows(t *testing.T) {
	backend := store.NewMemoryBackend()
	fw, err := store.NewFallbackWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFallbackWriter: %v", err)
	}
	s := store.New(backend, fw, store.DefaultConfig())

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	record := func(id string, ts time.Time) {
		t.Helper()
		ev := &telemetry.Event{
			ID:        id,
			EventType: telemetry.EventCompletionSuccess,
			RequestID: id,
			Timestamp: ts,
			Metadata:  telemetry.Metadata{StatusCode: 200},
		}
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	record("stale", now.AddDate(0, 0, -10))
	record("edge", now.AddDate(0, 0, -7).Add(time.Hour))
	record("fresh", now.Add(-time.Hour))

	p := NewPruner(s, &Config{RetentionDays: 7})
	p.nowFunc = func() time.Time { return now }

	rows, files, err := p.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if rows != 1 {
		t.Fatalf("deleted rows = %d, want 1", rows)
	}
	if files != 0 {
		t.Fatalf("deleted files = %d, want 0", files)
	}

	remaining := backend.Events()
	if len(remaining) != 2 {
		t.Fatalf("remaining events = %d, want 2", len(remaining))
	}
	for _, ev := range remaining {
		if ev.ID == "stale" {
			t.Error("stale event survived pruning")
		}
	}
}

func TestPruneDisabledByZeroRetention(t *testing.T) {
	backend := store.NewMemoryBackend()
	fw, _ := store.NewFallbackWriter(t.TempDir())
	s := store.New(backend, fw, store.DefaultConfig())

	p := NewPruner(s, &Config{RetentionDays: 0})
	rows, files, err := p.Prune(context.Background())
	if err != nil || rows != 0 || files != 0 {
		t.Fatalf("Prune = (%d, %d, %v), want no-op", rows, files, err)
	}
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	backend := store.NewMemoryBackend()
	fw, _ := store.NewFallbackWriter(t.TempDir())
	s := store.New(backend, fw, store.DefaultConfig())

	p := NewPruner(s, &Config{RetentionDays: 7, PruneSchedule: "not a schedule"})
	if err := NewScheduler(p).Start(context.Background()); err == nil {
		t.Fatal("invalid cron expression accepted")
	}
}

func TestSchedulerEmptyScheduleIsNoop(t *testing.T) {
	backend := store.NewMemoryBackend()
	fw, _ := store.NewFallbackWriter(t.TempDir())
	s := store.New(backend, fw, store.DefaultConfig())

	p := NewPruner(s, &Config{RetentionDays: 7, PruneSchedule: ""})
	sched := NewScheduler(p)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sched.Stop()
}
