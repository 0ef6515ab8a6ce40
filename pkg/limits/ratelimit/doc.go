// Package ratelimit provides the per-client admission gate: a fixed-window
// request counter keyed by client identity, checked before a request may
// contend for proxy capacity.
package ratelimit
