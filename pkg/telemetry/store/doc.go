// Package store persists telemetry events. A pluggable primary backend
// (SQLite, Postgres, or in-memory) handles the normal path; when it becomes
// unreachable the store switches permanently to append-only CSV day files
// so no event is lost. Aggregate metrics are computed from whichever path
// is active and cached with a TTL.
package store
