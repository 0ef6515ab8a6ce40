// Package storage persists admission accounting: per-client counters of
// admitted and rejected requests, written asynchronously off the request
// path and served by the usage endpoint.
package storage
