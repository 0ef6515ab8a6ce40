package proxy

import (
	"time"
)

// ClientMeta identifies the caller of one proxied request. It is filled by
// the HTTP layer from auth claims and request headers.
type ClientMeta struct {
	// ClientID is the authenticated project identity.
	ClientID string

	// UserID is the authenticated user identity, if present.
	UserID string

	// Address is the remote client address.
	Address string

	// RequestID correlates all telemetry for this request. Assigned by
	// the proxy when empty.
	RequestID string

	// Endpoint and Method describe the inbound HTTP call for telemetry.
	Endpoint string
	Method   string
}

// Completion is a successful proxied generation.
type Completion struct {
	Text             string  `json:"text"`
	Model            string  `json:"model,omitempty"`
	RequestID        string  `json:"request_id"`
	Attempts         int     `json:"attempts"`
	LatencyMs        float64 `json:"latency_ms"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}

// Config controls proxy admission and retry behavior.
type Config struct {
	// MaxConcurrency is the number of requests allowed past the gate at
	// once. Requests beyond it queue until a slot frees or their context
	// expires.
	MaxConcurrency int

	// RetryAttempts is the total number of downstream calls per request.
	RetryAttempts int

	// AttemptTimeout bounds each individual downstream call.
	AttemptTimeout time.Duration

	// MaxPromptChars rejects oversized prompts before admission.
	MaxPromptChars int
}

// DefaultConfig returns the standard proxy configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 500,
		RetryAttempts:  3,
		AttemptTimeout: 60 * time.Second,
		MaxPromptChars: 50000,
	}
}

// backoffCap bounds the pause between attempts.
const backoffCap = 10 * time.Second

// backoffAfter returns the pause following a failed attempt: attempt
// number times two seconds, capped.
func backoffAfter(attempt int) time.Duration {
	d := time.Duration(attempt) * 2 * time.Second
	if d > backoffCap {
		return backoffCap
	}
	return d
}
