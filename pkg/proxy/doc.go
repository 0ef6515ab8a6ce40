// Package proxy is the request path: it validates prompts, admits requests
// under a concurrency ceiling, calls the downstream model service with
// bounded retries and per-attempt timeouts, estimates token usage, and
// emits telemetry on every exit path.
//
// # Request Flow
//
//  1. Validate the prompt (before any capacity is taken)
//  2. Emit request_start
//  3. Acquire an admission slot, waiting as long as the caller allows
//  4. Call the downstream, retrying with linear capped backoff
//  5. Emit completion_success or request_failure; attempt_failure per retry
//
// All events for one request share a request ID, so a request's full
// history is reconstructable from telemetry alone.
package proxy
