package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dgenlabs/relay/pkg/telemetry"
)

func TestFallbackWriterStats(t *testing.T) {
	fw, err := NewFallbackWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFallbackWriter: %v", err)
	}

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	write := func(ev *telemetry.Event, ts time.Time) {
		t.Helper()
		ev.ID = "id-" + ev.RequestID
		ev.Timestamp = ts
		if err := fw.Write(ev); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	write(successEvent("a", 100, 10), now.Add(-2*time.Hour))
	write(successEvent("b", 200, 20), now.Add(-10*time.Minute))
	write(&telemetry.Event{
		EventType: telemetry.EventRequestFailure,
		RequestID: "c",
		Metadata:  telemetry.Metadata{StatusCode: 503, LatencyMs: 60000},
	}, now.Add(-5*time.Minute))
	// Non-terminal events do not count toward request totals.
	write(&telemetry.Event{
		EventType: telemetry.EventRequestStart,
		RequestID: "d",
	}, now.Add(-time.Minute))

	s, err := fw.Stats(context.Background(), now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if s.TerminalTotal != 3 {
		t.Errorf("TerminalTotal = %d, want 3", s.TerminalTotal)
	}
	if s.TerminalLastHour != 2 {
		t.Errorf("TerminalLastHour = %d, want 2", s.TerminalLastHour)
	}
	if s.Successes != 2 || s.Failures != 1 {
		t.Errorf("Successes/Failures = %d/%d, want 2/1", s.Successes, s.Failures)
	}
	if s.AvgLatencyMs != 150 {
		t.Errorf("AvgLatencyMs = %v, want 150", s.AvgLatencyMs)
	}
	if s.TokensTotal != 30 {
		t.Errorf("TokensTotal = %d, want 30", s.TokensTotal)
	}
}

func TestFallbackWriterSplitsFilesByDay(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFallbackWriter(dir)
	if err != nil {
		t.Fatalf("NewFallbackWriter: %v", err)
	}

	day1 := time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 30, 0, 1, 0, 0, time.UTC)

	ev := successEvent("a", 10, 1)
	ev.ID, ev.Timestamp = "e1", day1
	if err := fw.Write(ev); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ev2 := successEvent("b", 10, 1)
	ev2.ID, ev2.Timestamp = "e2", day2
	if err := fw.Write(ev2); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, name := range []string{"events-2026-08-29.csv", "events-2026-08-30.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected day file %s: %v", name, err)
		}
	}
}

func TestFallbackWriterPruneBefore(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFallbackWriter(dir)
	if err != nil {
		t.Fatalf("NewFallbackWriter: %v", err)
	}

	old := successEvent("old", 10, 1)
	old.ID = "e-old"
	old.Timestamp = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	recent := successEvent("recent", 10, 1)
	recent.ID = "e-recent"
	recent.Timestamp = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	for _, ev := range []*telemetry.Event{old, recent} {
		if err := fw.Write(ev); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	cutoff := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	removed, err := fw.PruneBefore(cutoff)
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "events-2026-08-01.csv")); !os.IsNotExist(err) {
		t.Error("old day file still present")
	}
	if _, err := os.Stat(filepath.Join(dir, "events-2026-08-29.csv")); err != nil {
		t.Errorf("recent day file missing: %v", err)
	}
}
