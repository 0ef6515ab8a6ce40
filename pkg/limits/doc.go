// Package limits enforces per-client request quotas for the relay.
//
// The package is organized into sub-packages:
//
//   - ratelimit: fixed-window per-client rate limiting
//   - storage: SQLite-backed admission accounting
//
// The rate limiter gates requests at the HTTP layer, keyed by the
// authenticated client identity. Every admit/reject decision is handed
// to the usage store asynchronously, so accounting never adds latency to
// the request path. All operations are safe for concurrent use.
package limits
