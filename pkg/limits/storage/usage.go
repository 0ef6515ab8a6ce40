package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// UsageRecord is one client's accumulated admission counters.
type UsageRecord struct {
	ClientID string    `json:"client_id"`
	Admitted int64     `json:"admitted"`
	Rejected int64     `json:"rejected"`
	LastSeen time.Time `json:"last_seen"`
}

// UsageStore persists per-client admission counters in SQLite. Writes are
// asynchronous: the rate-limit middleware hands off each decision to a
// buffered channel and a single worker folds them into the database, so
// accounting never adds latency to the request path. Under sustained
// overload decisions may be dropped rather than block.
//
// The store uses WAL mode with a background checkpoint loop, same as the
// telemetry SQLite backend but on the pure-Go driver since this database
// sees only counter upserts.
type UsageStore struct {
	db        *sql.DB
	upsert    *sql.Stmt
	list      *sql.Stmt
	decisions chan decision
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

type decision struct {
	clientID string
	allowed  bool
	ts       time.Time

	// ack, when set, marks a flush barrier instead of a real decision.
	ack chan struct{}
}

const usageSchema = `
CREATE TABLE IF NOT EXISTS admission_usage (
	client_id TEXT PRIMARY KEY,
	admitted  INTEGER NOT NULL DEFAULT 0,
	rejected  INTEGER NOT NULL DEFAULT 0,
	last_seen INTEGER NOT NULL
);
`

// NewUsageStore opens (or creates) the usage database at dbPath.
func NewUsageStore(dbPath string) (*UsageStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(usageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}

	s := &UsageStore{
		db:        db,
		decisions: make(chan decision, 1024),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "usage-store"),
	}

	s.upsert, err = db.Prepare(`
		INSERT INTO admission_usage (client_id, admitted, rejected, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			admitted = admitted + excluded.admitted,
			rejected = rejected + excluded.rejected,
			last_seen = excluded.last_seen
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}

	s.list, err = db.Prepare(`
		SELECT client_id, admitted, rejected, last_seen
		FROM admission_usage
		ORDER BY client_id
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.wg.Add(2)
	go s.worker()
	go s.checkpointLoop()

	return s, nil
}

// RecordDecision queues one admission decision for persistence. It never
// blocks; if the queue is full the decision is dropped.
func (s *UsageStore) RecordDecision(clientID string, allowed bool) {
	select {
	case s.decisions <- decision{clientID: clientID, allowed: allowed, ts: time.Now()}:
	default:
		s.logger.Warn("usage queue full, dropping decision", "client_id", clientID)
	}
}

// Flush blocks until every decision queued before the call is persisted.
func (s *UsageStore) Flush() {
	ack := make(chan struct{})
	select {
	case s.decisions <- decision{ack: ack}:
		<-ack
	case <-s.done:
	}
}

// Snapshot returns the accumulated counters for every known client.
func (s *UsageStore) Snapshot(ctx context.Context) ([]UsageRecord, error) {
	rows, err := s.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var r UsageRecord
		var lastSeen int64
		if err := rows.Scan(&r.ClientID, &r.Admitted, &r.Rejected, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		r.LastSeen = time.Unix(lastSeen, 0).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage rows: %w", err)
	}
	return records, nil
}

// Close drains the queue, stops the worker, and closes the database.
// Close is idempotent.
func (s *UsageStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()

		if s.upsert != nil {
			s.upsert.Close()
		}
		if s.list != nil {
			s.list.Close()
		}
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})
	return closeErr
}

func (s *UsageStore) worker() {
	defer s.wg.Done()
	for {
		select {
		case d := <-s.decisions:
			s.apply(d)
		case <-s.done:
			// Drain whatever is left before shutdown.
			for {
				select {
				case d := <-s.decisions:
					s.apply(d)
				default:
					return
				}
			}
		}
	}
}

func (s *UsageStore) apply(d decision) {
	if d.ack != nil {
		close(d.ack)
		return
	}

	admitted, rejected := int64(0), int64(0)
	if d.allowed {
		admitted = 1
	} else {
		rejected = 1
	}
	if _, err := s.upsert.Exec(d.clientID, admitted, rejected, d.ts.Unix()); err != nil {
		s.logger.Error("failed to persist admission decision",
			"client_id", d.clientID, "error", err)
	}
}

func (s *UsageStore) checkpointLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
