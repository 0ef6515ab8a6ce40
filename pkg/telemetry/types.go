package telemetry

import (
	"time"
)

// EventType is a closed enumeration of telemetry event categories.
type EventType string

const (
	// EventRequestStart is emitted when a request enters the proxy.
	EventRequestStart EventType = "request_start"

	// EventCompletionSuccess is emitted when the downstream backend returns
	// a usable completion.
	EventCompletionSuccess EventType = "completion_success"

	// EventAttemptFailure is emitted for each failed downstream attempt,
	// including attempts that are subsequently retried.
	EventAttemptFailure EventType = "attempt_failure"

	// EventRequestFailure is emitted once when all attempts are exhausted.
	EventRequestFailure EventType = "request_failure"
)

// LifecyclePrefix tags events produced by RecordLifecycle. The full event
// type is the prefix followed by the lifecycle kind, e.g. "lifecycle_startup".
const LifecyclePrefix = "lifecycle_"

// LifecycleEventType builds the event type for a lifecycle kind.
func LifecycleEventType(kind string) EventType {
	return EventType(LifecyclePrefix + kind)
}

// IsTerminal reports whether the event type marks the end of a request.
func (t EventType) IsTerminal() bool {
	return t == EventCompletionSuccess || t == EventRequestFailure
}

// Metadata carries the per-event request details. Pointer fields are
// optional: nil means "not recorded", which is distinct from zero.
// StatusCode and LatencyMs are mandatory on terminal events.
type Metadata struct {
	ClientID         string         `json:"client_id"`
	UserID           string         `json:"user_id,omitempty"`
	TargetService    string         `json:"target_service"`
	Endpoint         string         `json:"endpoint"`
	Method           string         `json:"method"`
	StatusCode       int            `json:"status_code"`
	LatencyMs        float64        `json:"latency_ms"`
	RequestSize      *int           `json:"request_size,omitempty"`
	ResponseSize     *int           `json:"response_size,omitempty"`
	PromptTokens     *int           `json:"prompt_tokens,omitempty"`
	CompletionTokens *int           `json:"completion_tokens,omitempty"`
	TotalTokens      *int           `json:"total_tokens,omitempty"`
	Model            string         `json:"model,omitempty"`
	ModelLatencyMs   *float64       `json:"model_latency_ms,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Event is one immutable telemetry record. Every request that enters the
// proxy produces at least one terminal event on every exit path.
type Event struct {
	ID            string    `json:"id"`
	EventType     EventType `json:"event_type"`
	RequestID     string    `json:"request_id"`
	Timestamp     time.Time `json:"timestamp"`
	ClientAddress string    `json:"client_address,omitempty"`
	Metadata      Metadata  `json:"metadata"`
}

// AggregateMetrics is a derived snapshot over the recorded events.
// It is cached with a TTL; callers may observe values that lag the most
// recent event by up to the cache TTL.
type AggregateMetrics struct {
	RequestsTotal    int64   `json:"requests_total"`
	RequestsLastHour int64   `json:"requests_last_hour"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
	TokenUsageTotal  int64   `json:"token_usage_total"`
	BackendStatus    string  `json:"backend_status"`
}

// HealthStatus describes the telemetry store's connection state.
type HealthStatus struct {
	Connected      bool    `json:"connected"`
	FallbackActive bool    `json:"fallback_active"`
	ResponseTimeMs float64 `json:"response_time_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// IntPtr returns a pointer to v. Convenience for optional Metadata fields.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
