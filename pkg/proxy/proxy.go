package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"dgenlabs/relay/pkg/backend"
	"dgenlabs/relay/pkg/telemetry"
)

// Recorder receives telemetry events. All proxy writes are best-effort:
// a recorder failure never fails the request.
type Recorder interface {
	Record(ctx context.Context, ev *telemetry.Event) error
}

// Proxy admits, retries, and meters generation requests against a
// downstream model service. One Proxy serves all clients; per-request
// state lives on the stack of Handle.
type Proxy struct {
	cfg      Config
	gen      backend.Generator
	pool     *backend.Pool
	recorder Recorder
	sem      *semaphore.Weighted
	logger   *slog.Logger

	// sleepFunc is replaced in tests to skip real backoff waits.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a proxy over the given generator. The worker pool is sized
// from the concurrency ceiling.
func New(cfg Config, gen backend.Generator, recorder Recorder) *Proxy {
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = def.MaxPromptChars
	}

	return &Proxy{
		cfg:      cfg,
		gen:      gen,
		pool:     backend.NewPool(cfg.MaxConcurrency),
		recorder: recorder,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		logger:   slog.Default().With("component", "proxy"),
		sleepFunc: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// Close stops the worker pool.
func (p *Proxy) Close() {
	p.pool.Close()
}

// Handle runs one request end to end: validate, admit, call the downstream
// with bounded retries, and emit telemetry on every exit path. The error,
// when non-nil, is always a *Error.
func (p *Proxy) Handle(ctx context.Context, target string, meta ClientMeta, prompt string, payload map[string]any) (*Completion, error) {
	if meta.RequestID == "" {
		meta.RequestID = uuid.NewString()
	}

	// Validation happens before any slot is taken so malformed requests
	// cannot occupy capacity.
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, p.fail(ctx, target, meta, 0, time.Now(), ErrInvalidInput, "prompt must not be empty", nil)
	}
	if len(prompt) > p.cfg.MaxPromptChars {
		msg := fmt.Sprintf("prompt exceeds %d characters", p.cfg.MaxPromptChars)
		return nil, p.fail(ctx, target, meta, 0, time.Now(), ErrInvalidInput, msg, nil)
	}

	start := time.Now()
	promptTokens := EstimateTokens(prompt)

	p.record(ctx, telemetry.EventRequestStart, target, meta, telemetry.Metadata{
		RequestSize:  telemetry.IntPtr(len(prompt)),
		PromptTokens: telemetry.IntPtr(promptTokens),
	})

	if err := p.sem.Acquire(ctx, 1); err != nil {
		kind := ErrTimeout
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			kind = ErrInternal
		}
		return nil, p.fail(ctx, target, meta, promptTokens, start, kind, "request abandoned while queued for capacity", err)
	}
	defer p.sem.Release(1)

	req := &backend.Request{Target: target, Prompt: prompt, Payload: payload}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		res, err := p.pool.Generate(attemptCtx, p.gen, req)
		cancel()

		if err == nil && strings.TrimSpace(res.Text) == "" {
			err = fmt.Errorf("downstream returned an empty completion")
		}
		if err == nil {
			return p.succeed(ctx, target, meta, res, attempt, promptTokens, start), nil
		}
		lastErr = err

		// The caller is gone; retrying would burn capacity for nobody.
		if ctx.Err() != nil {
			return nil, p.fail(ctx, target, meta, promptTokens, start, ErrTimeout, "request deadline exceeded", ctx.Err())
		}

		p.logger.Warn("downstream attempt failed",
			"request_id", meta.RequestID, "target", target,
			"attempt", attempt, "error", err)
		p.record(ctx, telemetry.EventAttemptFailure, target, meta, telemetry.Metadata{
			StatusCode:   attemptStatus(err),
			LatencyMs:    msSince(start),
			PromptTokens: telemetry.IntPtr(promptTokens),
			Extra: map[string]any{
				"attempt":    attempt,
				"error":      err.Error(),
				"error_kind": string(attemptKind(err)),
			},
		})

		if attempt < p.cfg.RetryAttempts {
			if err := p.sleepFunc(ctx, backoffAfter(attempt)); err != nil {
				return nil, p.fail(ctx, target, meta, promptTokens, start, ErrTimeout, "request deadline exceeded", err)
			}
		}
	}

	kind := classify(lastErr)
	msg := fmt.Sprintf("all %d attempts failed", p.cfg.RetryAttempts)
	return nil, p.fail(ctx, target, meta, promptTokens, start, kind, msg, lastErr)
}

// succeed emits the success event and builds the completion.
func (p *Proxy) succeed(ctx context.Context, target string, meta ClientMeta, res *backend.Result, attempts, promptTokens int, start time.Time) *Completion {
	completionTokens := CompletionTokens(strings.TrimSpace(res.Text))
	totalTokens := promptTokens + completionTokens
	latencyMs := msSince(start)

	p.record(ctx, telemetry.EventCompletionSuccess, target, meta, telemetry.Metadata{
		StatusCode:       200,
		LatencyMs:        latencyMs,
		ResponseSize:     telemetry.IntPtr(len(res.Text)),
		PromptTokens:     telemetry.IntPtr(promptTokens),
		CompletionTokens: telemetry.IntPtr(completionTokens),
		TotalTokens:      telemetry.IntPtr(totalTokens),
		Model:            res.Model,
		ModelLatencyMs:   telemetry.Float64Ptr(float64(res.Latency.Microseconds()) / 1000.0),
		Extra:            map[string]any{"attempts": attempts},
	})

	return &Completion{
		Text:             res.Text,
		Model:            res.Model,
		RequestID:        meta.RequestID,
		Attempts:         attempts,
		LatencyMs:        latencyMs,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      totalTokens,
	}
}

// fail emits the terminal failure event and builds the typed error.
// Invalid input never got a start event and is reported with zero latency.
func (p *Proxy) fail(ctx context.Context, target string, meta ClientMeta, promptTokens int, start time.Time, kind ErrorKind, msg string, cause error) *Error {
	e := &Error{Kind: kind, Message: msg, RequestID: meta.RequestID, Cause: cause}

	md := telemetry.Metadata{
		StatusCode: e.HTTPStatus(),
		LatencyMs:  msSince(start),
		Extra:      map[string]any{"error_kind": string(kind)},
	}
	if promptTokens > 0 {
		md.PromptTokens = telemetry.IntPtr(promptTokens)
	}
	if cause != nil {
		md.Extra["error"] = cause.Error()
	}
	p.record(ctx, telemetry.EventRequestFailure, target, meta, md)

	p.logger.Error("request failed",
		"request_id", meta.RequestID, "target", target,
		"kind", string(kind), "error", e.Error())
	return e
}

// record emits one telemetry event, best-effort. Events are written with a
// detached context so a cancelled request still gets its terminal event.
func (p *Proxy) record(ctx context.Context, eventType telemetry.EventType, target string, meta ClientMeta, md telemetry.Metadata) {
	if p.recorder == nil {
		return
	}
	md.ClientID = meta.ClientID
	md.UserID = meta.UserID
	md.TargetService = target
	md.Endpoint = meta.Endpoint
	md.Method = meta.Method

	ev := &telemetry.Event{
		ID:            uuid.NewString(),
		EventType:     eventType,
		RequestID:     meta.RequestID,
		Timestamp:     time.Now().UTC(),
		ClientAddress: meta.Address,
		Metadata:      md,
	}
	if err := p.recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		p.logger.Warn("telemetry record failed", "request_id", meta.RequestID, "error", err)
	}
}

// classify maps the final attempt error to a caller-facing kind: anything
// that looks like an unreachable or overloaded downstream is
// service_unavailable, the rest is internal.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrServiceUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrServiceUnavailable
	}
	var be *backend.Error
	if errors.As(err, &be) {
		if be.StatusCode == 0 || be.StatusCode == 502 || be.StatusCode == 503 || be.StatusCode == 504 || be.StatusCode == 429 {
			return ErrServiceUnavailable
		}
	}
	return ErrInternal
}

// attemptKind tags a single failed attempt. A deadline on the attempt is
// a timeout even though the request as a whole may still succeed on a
// retry; everything else classifies the same way as a terminal failure.
func attemptKind(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return classify(err)
}

// attemptStatus picks the status recorded on an attempt failure event.
func attemptStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return 504
	}
	var be *backend.Error
	if errors.As(err, &be) && be.StatusCode > 0 {
		return be.StatusCode
	}
	return 502
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
