package store

// sqliteSchema defines the telemetry database layout. Request events and
// lifecycle log entries share the same shape but live in separate tables so
// aggregates never scan lifecycle noise. Metadata is flattened into columns;
// the free-form extra map is stored as compact JSON text.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
INSERT OR IGNORE INTO schema_version (version) VALUES (1);

CREATE TABLE IF NOT EXISTS events (
	id               TEXT PRIMARY KEY,
	event_type       TEXT NOT NULL,
	request_id       TEXT NOT NULL,
	timestamp_ms     INTEGER NOT NULL,
	client_address   TEXT NOT NULL DEFAULT '',
	client_id        TEXT NOT NULL DEFAULT '',
	user_id          TEXT NOT NULL DEFAULT '',
	target_service   TEXT NOT NULL DEFAULT '',
	endpoint         TEXT NOT NULL DEFAULT '',
	method           TEXT NOT NULL DEFAULT '',
	status_code      INTEGER NOT NULL DEFAULT 0,
	latency_ms       REAL NOT NULL DEFAULT 0,
	request_size     INTEGER,
	response_size    INTEGER,
	prompt_tokens    INTEGER,
	completion_tokens INTEGER,
	total_tokens     INTEGER,
	model            TEXT NOT NULL DEFAULT '',
	model_latency_ms REAL,
	extra            TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp_ms);
CREATE INDEX IF NOT EXISTS idx_events_request_id ON events(request_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);

CREATE TABLE IF NOT EXISTS lifecycle_log (
	id               TEXT PRIMARY KEY,
	event_type       TEXT NOT NULL,
	request_id       TEXT NOT NULL,
	timestamp_ms     INTEGER NOT NULL,
	client_address   TEXT NOT NULL DEFAULT '',
	client_id        TEXT NOT NULL DEFAULT '',
	user_id          TEXT NOT NULL DEFAULT '',
	target_service   TEXT NOT NULL DEFAULT '',
	endpoint         TEXT NOT NULL DEFAULT '',
	method           TEXT NOT NULL DEFAULT '',
	status_code      INTEGER NOT NULL DEFAULT 0,
	latency_ms       REAL NOT NULL DEFAULT 0,
	request_size     INTEGER,
	response_size    INTEGER,
	prompt_tokens    INTEGER,
	completion_tokens INTEGER,
	total_tokens     INTEGER,
	model            TEXT NOT NULL DEFAULT '',
	model_latency_ms REAL,
	extra            TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_lifecycle_timestamp ON lifecycle_log(timestamp_ms);
`

const sqliteInsertColumns = `(id, event_type, request_id, timestamp_ms, client_address,
	client_id, user_id, target_service, endpoint, method, status_code, latency_ms,
	request_size, response_size, prompt_tokens, completion_tokens, total_tokens,
	model, model_latency_ms, extra)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sqliteStatsQuery = `
SELECT
	COALESCE(SUM(CASE WHEN event_type IN ('completion_success', 'request_failure') THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN event_type IN ('completion_success', 'request_failure') AND timestamp_ms >= ? THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN event_type = 'completion_success' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN event_type = 'request_failure' THEN 1 ELSE 0 END), 0),
	COALESCE(AVG(CASE WHEN event_type = 'completion_success' THEN latency_ms END), 0),
	COALESCE(SUM(CASE WHEN event_type = 'completion_success' THEN total_tokens END), 0)
FROM events`
