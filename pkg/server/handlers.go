package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"dgenlabs/relay/pkg/proxy"
	"dgenlabs/relay/pkg/proxy/middleware"
	"dgenlabs/relay/pkg/telemetry"
)

const maxBodyBytes = 10 << 20

type generateRequest struct {
	Prompt  string         `json:"prompt"`
	Target  string         `json:"target,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// handleGenerate forwards a prompt to the downstream model service
// through the proxy and returns the completion.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req generateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"request body must be a JSON object with a prompt field", requestID)
		return
	}

	target := req.Target
	if target == "" {
		target = s.cfg.Proxy.DefaultTarget
	}

	meta := proxy.ClientMeta{
		ClientID:  middleware.GetClientID(ctx),
		UserID:    middleware.GetUserID(ctx),
		Address:   r.RemoteAddr,
		RequestID: requestID,
		Endpoint:  r.URL.Path,
		Method:    r.Method,
	}

	start := time.Now()
	comp, err := s.proxy.Handle(ctx, target, meta, req.Prompt, req.Payload)
	if err != nil {
		var perr *proxy.Error
		if !errors.As(err, &perr) {
			perr = proxy.NewError(proxy.ErrInternal, "request failed", err)
		}
		status := perr.HTTPStatus()
		s.recordRequest(target, "", status, time.Since(start), 0, 0)
		if perr.RequestID != "" {
			requestID = perr.RequestID
		}
		writeError(w, status, string(perr.Kind), perr.Message, requestID)
		return
	}

	s.recordRequest(target, comp.Model, http.StatusOK, time.Since(start),
		comp.PromptTokens, comp.CompletionTokens)
	writeJSON(w, http.StatusOK, comp)
}

// handleIngest accepts client-submitted telemetry events.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var ev telemetry.Event
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"request body must be a JSON telemetry event", requestID)
		return
	}
	if ev.EventType == "" {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"event_type is required", requestID)
		return
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.RequestID == "" {
		ev.RequestID = requestID
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.ClientAddress == "" {
		ev.ClientAddress = r.RemoteAddr
	}

	if err := s.store.Record(r.Context(), &ev); err != nil {
		writeError(w, http.StatusInternalServerError, "telemetry_error",
			"failed to record event", requestID)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"id":     ev.ID,
	})
}

// handleMetrics returns the cached aggregate telemetry snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.AggregateMetrics(r.Context()))
}

// handleHealth reports service liveness and the telemetry store state.
// The service stays healthy while telemetry runs on the CSV fallback.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hs := s.store.HealthCheck(r.Context())

	status := http.StatusOK
	state := "ok"
	if !hs.Connected && !hs.FallbackActive {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	} else if hs.FallbackActive {
		state = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status":    state,
		"version":   s.version,
		"telemetry": hs,
	})
}

// handleInfo describes the running service and its effective limits.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":             "relay",
		"version":             s.version,
		"default_target":      s.cfg.Proxy.DefaultTarget,
		"max_concurrency":     s.cfg.Proxy.MaxConcurrency,
		"retry_attempts":      s.cfg.Proxy.RetryAttempts,
		"attempt_timeout":     s.cfg.Proxy.AttemptTimeout.String(),
		"requests_per_minute": s.limiter.Limit(),
	})
}

// handleUsage returns the per-client admission counters.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if s.usage == nil {
		writeJSON(w, http.StatusOK, map[string]any{"clients": []any{}})
		return
	}

	// Drain pending async decisions so the snapshot is current.
	s.usage.Flush()
	records, err := s.usage.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "usage_error",
			"failed to read usage counters", requestID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"clients": records})
}

type tokenRequest struct {
	SOEID     string `json:"soeid"`
	ProjectID string `json:"project_id"`
}

// handleToken issues an API token for the given identity.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if s.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "token_signing_unavailable",
			"no signing secret is configured", requestID)
		return
	}

	var req tokenRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request",
			"request body must be a JSON object with soeid and project_id", requestID)
		return
	}

	token, err := s.tokens.Generate(req.SOEID, req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), requestID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":      token,
		"soeid":      req.SOEID,
		"project_id": req.ProjectID,
	})
}

func (s *Server) recordRequest(target, model string, status int, duration time.Duration, promptTokens, completionTokens int) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRequest(target, model, strconv.Itoa(status), duration,
		promptTokens, completionTokens)
}
