package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dgenlabs/relay/pkg/backend"
	"dgenlabs/relay/pkg/config"
	"dgenlabs/relay/pkg/limits/ratelimit"
	"dgenlabs/relay/pkg/proxy"
	"dgenlabs/relay/pkg/security/auth"
	"dgenlabs/relay/pkg/telemetry/metrics"
	"dgenlabs/relay/pkg/telemetry/store"
)

type testFixture struct {
	server  *Server
	backend *store.MemoryBackend
	gen     *backend.MockGenerator
	tokens  *auth.TokenManager
}

func newFixture(t *testing.T, steps ...backend.MockStep) *testFixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Auth.Secret = "test-secret"
	cfg.Auth.AllowDefaultToken = true
	cfg.Proxy.RetryAttempts = 1
	cfg.Proxy.AttemptTimeout = time.Second
	cfg.Limits.RequestsPerMinute = 1000

	mem := store.NewMemoryBackend()
	fb, err := store.NewFallbackWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewFallbackWriter failed: %v", err)
	}
	st := store.New(mem, fb, store.DefaultConfig())
	t.Cleanup(func() { st.Close() })

	if len(steps) == 0 {
		steps = []backend.MockStep{{Result: &backend.Result{Text: "hello", Model: "test-model"}}}
	}
	gen := backend.NewMockGenerator(steps...)

	px := proxy.New(proxy.Config{
		MaxConcurrency: cfg.Proxy.MaxConcurrency,
		RetryAttempts:  cfg.Proxy.RetryAttempts,
		AttemptTimeout: cfg.Proxy.AttemptTimeout,
	}, gen, st)
	t.Cleanup(px.Close)

	tm, err := auth.NewTokenManager(cfg.Auth.Secret)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	srv := New(Options{
		Config:  cfg,
		Version: "test",
		Proxy:   px,
		Store:   st,
		Limiter: ratelimit.New(cfg.Limits.RequestsPerMinute, time.Minute),
		Tokens:  tm,
		Metrics: metrics.NewRequestMetrics("relay"),
	})

	return &testFixture{server: srv, backend: mem, gen: gen, tokens: tm}
}

func (f *testFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestGenerateReturnsCompletion(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "say hello"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["text"] != "hello" {
		t.Errorf("unexpected completion text: %v", body["text"])
	}
	if body["model"] != "test-model" {
		t.Errorf("unexpected model: %v", body["model"])
	}
	if body["request_id"] == "" {
		t.Error("completion missing request_id")
	}

	// Request start plus terminal success event.
	events := f.backend.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 telemetry events, got %d", len(events))
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "   "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "invalid_input" {
		t.Errorf("expected invalid_input error code, got %v", body["error"])
	}
	if f.gen.Calls() != 0 {
		t.Errorf("empty prompt reached the backend: %d calls", f.gen.Calls())
	}
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/llm", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateMapsBackendFailure(t *testing.T) {
	f := newFixture(t, backend.MockStep{
		Err: backend.NewError("models/default", http.StatusServiceUnavailable, "down", nil),
	})

	rec := f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "hi"}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != "service_unavailable" {
		t.Errorf("expected service_unavailable error code, got %v", body["error"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("expected ok status, got %v", body["status"])
	}
}

func TestMetricsEndpointReturnsAggregates(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "one"}, nil)

	rec := f.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["requests_total"].(float64) != 1 {
		t.Errorf("expected 1 total request, got %v", body["requests_total"])
	}
	if body["backend_status"] != "connected" {
		t.Errorf("expected connected backend status, got %v", body["backend_status"])
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "one"}, nil)

	rec := f.do(t, http.MethodGet, "/metrics/prometheus", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("relay_requests_total")) {
		t.Error("exposition missing relay_requests_total")
	}
}

func TestTelemetryIngest(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/telemetry", map[string]any{
		"event_type": "completion_success",
		"metadata": map[string]any{
			"client_id":   "external",
			"status_code": 200,
			"latency_ms":  12.5,
		},
	}, nil)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["id"] == "" {
		t.Error("ingest response missing event id")
	}
	if len(f.backend.Events()) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(f.backend.Events()))
	}
}

func TestTelemetryIngestRequiresEventType(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/telemetry", map[string]any{"request_id": "r1"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestInfoEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/info", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["service"] != "relay" {
		t.Errorf("unexpected service name: %v", body["service"])
	}
	if body["requests_per_minute"].(float64) != 1000 {
		t.Errorf("unexpected rate limit: %v", body["requests_per_minute"])
	}
}

func TestTokenIssuanceAndUse(t *testing.T) {
	f := newFixture(t)
	f.server.cfg.Auth.AllowDefaultToken = false

	rec := f.do(t, http.MethodPost, "/auth/token",
		map[string]any{"soeid": "ab12345", "project_id": "team-a"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	token := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("empty token issued")
	}

	// Without the token the API is closed.
	rec = f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "hi"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// With it, requests pass.
	rec = f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "hi"},
		map[string]string{auth.TokenHeader: token})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTokenIssuanceRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/token", map[string]any{"soeid": "ab12345"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	f := newFixture(t)
	f.server.limiter = ratelimit.New(2, time.Minute)

	for i := 0; i < 2; i++ {
		rec := f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "hi"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "hi"}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}

	// Status endpoints stay reachable past the limit.
	for _, path := range []string{"/health", "/info", "/metrics"} {
		rec = f.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s gated by rate limit: %d", path, rec.Code)
		}
	}
}

func TestStatusEndpointsOpenWithoutToken(t *testing.T) {
	f := newFixture(t)
	f.server.cfg.Auth.AllowDefaultToken = false

	for _, path := range []string{"/health", "/info", "/metrics", "/metrics/prometheus"} {
		rec := f.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s without token: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestUsageEndpointWithoutStore(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/limits/usage", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["clients"]; !ok {
		t.Error("usage response missing clients field")
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/llm", map[string]any{"prompt": "hi"}, nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}
