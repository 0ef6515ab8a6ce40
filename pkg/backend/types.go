package backend

import (
	"context"
	"time"
)

// Request is one generation call to a downstream model service.
type Request struct {
	// Target selects the downstream route, e.g. "models/default".
	Target string `json:"target"`

	// Prompt is the validated prompt text.
	Prompt string `json:"prompt"`

	// Payload carries passthrough fields from the caller (sampling
	// parameters, stop sequences, anything the downstream understands).
	Payload map[string]any `json:"payload,omitempty"`
}

// Result is a downstream completion.
type Result struct {
	// Text is the completion text. The proxy treats an empty or
	// all-whitespace Text as a failed attempt.
	Text string `json:"text"`

	// Model is the model identifier reported by the downstream, if any.
	Model string `json:"model,omitempty"`

	// Latency is the downstream call duration measured by the client.
	Latency time.Duration `json:"-"`
}

// Generator is the downstream model service contract. Implementations must
// honor context cancellation and be safe for concurrent use.
type Generator interface {
	// Generate performs one completion call.
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// Config configures the HTTP generator.
type Config struct {
	// BaseURL is the downstream service root, e.g. "http://models:8080".
	BaseURL string

	// Timeout is the absolute client-level cap on one call. Per-attempt
	// deadlines come from the caller's context; this is a backstop.
	Timeout time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost size the connection pool.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultConfig returns generator defaults sized for a single downstream.
func DefaultConfig() Config {
	return Config{
		Timeout:             90 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	}
}
