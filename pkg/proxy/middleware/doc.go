// Package middleware provides the HTTP middleware chain: panic recovery,
// request logging, request ID assignment, CORS, and per-client rate
// limiting. Handlers downstream of the chain read the request ID and
// authenticated identity from the request context.
package middleware
