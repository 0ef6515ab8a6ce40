// Package server exposes the relay over HTTP.
//
// The route table covers prompt forwarding (POST /api/llm), telemetry
// ingest and aggregates, Prometheus exposition, health, service info,
// admission usage counters, and token issuance. The middleware chain is,
// outermost first: recovery, logging, request ID, CORS, authentication,
// and rate limiting.
package server
