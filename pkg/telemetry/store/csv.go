package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"dgenlabs/relay/pkg/telemetry"
)

// csvHeader is the flat-file column layout. Nested metadata is flattened
// into metadata_* columns; the extra map is serialized to compact JSON in
// the last column.
var csvHeader = []string{
	"id", "event_type", "request_id", "timestamp", "client_address",
	"metadata_client_id", "metadata_user_id", "metadata_target_service",
	"metadata_endpoint", "metadata_method", "metadata_status_code",
	"metadata_latency_ms", "metadata_request_size", "metadata_response_size",
	"metadata_prompt_tokens", "metadata_completion_tokens",
	"metadata_total_tokens", "metadata_model", "metadata_model_latency_ms",
	"metadata_extra",
}

// FallbackWriter appends telemetry events to daily CSV files. It is the
// durable last resort when the primary backend is unreachable: one file per
// collection per UTC day, header written only when the file is created.
type FallbackWriter struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFallbackWriter creates the target directory if needed.
func NewFallbackWriter(dir string) (*FallbackWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, telemetry.NewWriteError("", "fallback", err)
	}
	return &FallbackWriter{
		dir:    dir,
		logger: slog.Default().With("component", "telemetry-fallback"),
	}, nil
}

// Dir returns the fallback directory.
func (w *FallbackWriter) Dir() string { return w.dir }

// Write appends one event to the day file for its collection.
func (w *FallbackWriter) Write(ev *telemetry.Event) error {
	collection := "events"
	if isLifecycle(ev.EventType) {
		collection = "lifecycle"
	}
	name := fmt.Sprintf("%s-%s.csv", collection, ev.Timestamp.UTC().Format("2006-01-02"))
	path := filepath.Join(w.dir, name)

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return telemetry.NewWriteError(ev.ID, "fallback", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return telemetry.NewWriteError(ev.ID, "fallback", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(csvHeader); err != nil {
			return telemetry.NewWriteError(ev.ID, "fallback", err)
		}
	}
	if err := cw.Write(eventToRow(ev)); err != nil {
		return telemetry.NewWriteError(ev.ID, "fallback", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return telemetry.NewWriteError(ev.ID, "fallback", err)
	}
	return nil
}

// Stats recomputes aggregate statistics by scanning the event day files.
// Fallback mode trades query speed for durability; the store's TTL cache
// keeps this off the hot path.
func (w *FallbackWriter) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(w.dir, "events-*.csv"))
	if err != nil {
		return nil, telemetry.NewBackendError("fallback", "stats", err)
	}

	hourAgo := now.Add(-time.Hour)
	var s Stats
	var latencySum float64
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := scanEventFile(path, hourAgo, &s, &latencySum); err != nil {
			return nil, telemetry.NewBackendError("fallback", "stats", err)
		}
	}
	if s.Successes > 0 {
		s.AvgLatencyMs = latencySum / float64(s.Successes)
	}
	return &s, nil
}

func scanEventFile(path string, hourAgo time.Time, s *Stats, latencySum *float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if first {
			first = false
			continue
		}

		eventType := telemetry.EventType(row[1])
		if !eventType.IsTerminal() {
			continue
		}
		s.TerminalTotal++
		if ts, err := time.Parse(time.RFC3339Nano, row[3]); err == nil && !ts.Before(hourAgo) {
			s.TerminalLastHour++
		}
		if eventType == telemetry.EventCompletionSuccess {
			s.Successes++
			if v, err := strconv.ParseFloat(row[11], 64); err == nil {
				*latencySum += v
			}
			if row[16] != "" {
				if v, err := strconv.ParseInt(row[16], 10, 64); err == nil {
					s.TokensTotal += v
				}
			}
		} else {
			s.Failures++
		}
	}
}

// PruneBefore removes day files whose entire day precedes cutoff.
// Returns the number of files removed.
func (w *FallbackWriter) PruneBefore(cutoff time.Time) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for _, pattern := range []string{"events-*.csv", "lifecycle-*.csv"} {
		paths, err := filepath.Glob(filepath.Join(w.dir, pattern))
		if err != nil {
			return removed, err
		}
		for _, path := range paths {
			day, ok := dayOfFile(filepath.Base(path))
			if !ok {
				continue
			}
			if day.Add(24 * time.Hour).After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
			w.logger.Info("removed stale fallback file", "file", filepath.Base(path))
		}
	}
	return removed, nil
}

func dayOfFile(name string) (time.Time, bool) {
	base := name[:len(name)-len(filepath.Ext(name))]
	if len(base) < len("2006-01-02") {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", base[len(base)-len("2006-01-02"):])
	if err != nil {
		return time.Time{}, false
	}
	return day.UTC(), true
}

func eventToRow(ev *telemetry.Event) []string {
	m := &ev.Metadata
	extra := ""
	if len(m.Extra) > 0 {
		if raw, err := json.Marshal(m.Extra); err == nil {
			extra = string(raw)
		}
	}
	return []string{
		ev.ID,
		string(ev.EventType),
		ev.RequestID,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ev.ClientAddress,
		m.ClientID,
		m.UserID,
		m.TargetService,
		m.Endpoint,
		m.Method,
		strconv.Itoa(m.StatusCode),
		strconv.FormatFloat(m.LatencyMs, 'f', -1, 64),
		optInt(m.RequestSize),
		optInt(m.ResponseSize),
		optInt(m.PromptTokens),
		optInt(m.CompletionTokens),
		optInt(m.TotalTokens),
		m.Model,
		optFloat(m.ModelLatencyMs),
		extra,
	}
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
