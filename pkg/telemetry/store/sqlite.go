package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dgenlabs/relay/pkg/telemetry"
)

// SQLiteBackend stores telemetry events in a local SQLite database in WAL
// mode. It is the default primary backend.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteBackend opens (or creates) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, telemetry.NewBackendError("sqlite", "open", err)
	}

	// WAL supports one writer; funnel all writes through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, telemetry.NewBackendError("sqlite", "migrate", err)
	}

	return &SQLiteBackend{
		db:     db,
		logger: slog.Default().With("component", "telemetry-sqlite"),
	}, nil
}

// Name returns "sqlite".
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Ping verifies the database is reachable.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return telemetry.NewBackendError("sqlite", "ping", err)
	}
	return nil
}

// Insert persists one event. Lifecycle events go to the lifecycle log table.
func (b *SQLiteBackend) Insert(ctx context.Context, ev *telemetry.Event) error {
	table := "events"
	if isLifecycle(ev.EventType) {
		table = "lifecycle_log"
	}

	query := "INSERT INTO " + table + " " + sqliteInsertColumns
	if _, err := b.db.ExecContext(ctx, query, insertArgs(ev)...); err != nil {
		return telemetry.NewBackendError("sqlite", "insert", err)
	}
	return nil
}

// Stats computes aggregate statistics over request events.
func (b *SQLiteBackend) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	hourAgo := now.Add(-time.Hour).UnixMilli()

	var s Stats
	row := b.db.QueryRowContext(ctx, sqliteStatsQuery, hourAgo)
	if err := row.Scan(&s.TerminalTotal, &s.TerminalLastHour, &s.Successes,
		&s.Failures, &s.AvgLatencyMs, &s.TokensTotal); err != nil {
		return nil, telemetry.NewBackendError("sqlite", "stats", err)
	}
	return &s, nil
}

// DeleteBefore removes events older than cutoff from both tables.
func (b *SQLiteBackend) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ms := cutoff.UnixMilli()
	var total int64
	for _, table := range []string{"events", "lifecycle_log"} {
		res, err := b.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE timestamp_ms < ?", ms)
		if err != nil {
			return total, telemetry.NewBackendError("sqlite", "delete", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	b.logger.Debug("pruned telemetry rows", "deleted", total, "cutoff", cutoff)
	return total, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func isLifecycle(t telemetry.EventType) bool {
	return len(t) > len(telemetry.LifecyclePrefix) &&
		string(t[:len(telemetry.LifecyclePrefix)]) == telemetry.LifecyclePrefix
}

// insertArgs flattens an event into the shared column order used by the
// SQLite and Postgres insert statements.
func insertArgs(ev *telemetry.Event) []any {
	m := &ev.Metadata
	extra := ""
	if len(m.Extra) > 0 {
		if raw, err := json.Marshal(m.Extra); err == nil {
			extra = string(raw)
		}
	}
	return []any{
		ev.ID, string(ev.EventType), ev.RequestID, ev.Timestamp.UnixMilli(),
		ev.ClientAddress, m.ClientID, m.UserID, m.TargetService, m.Endpoint,
		m.Method, m.StatusCode, m.LatencyMs, m.RequestSize, m.ResponseSize,
		m.PromptTokens, m.CompletionTokens, m.TotalTokens, m.Model,
		m.ModelLatencyMs, extra,
	}
}
