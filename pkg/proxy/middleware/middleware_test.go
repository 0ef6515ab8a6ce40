package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"dgenlabs/relay/pkg/limits/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no request ID in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Fatalf("response header = %q, context = %q", got, seen)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-chosen-id")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "client-chosen-id" {
		t.Fatalf("request ID = %q, want client-chosen-id", seen)
	}
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "internal_error" {
		t.Fatalf("error code = %q", body.Error)
	}
}

type captureDecisions struct {
	mu       sync.Mutex
	admitted map[string]int
	rejected map[string]int
}

func (c *captureDecisions) RecordDecision(clientID string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.admitted == nil {
		c.admitted = map[string]int{}
		c.rejected = map[string]int{}
	}
	if allowed {
		c.admitted[clientID]++
	} else {
		c.rejected[clientID]++
	}
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	limiter := ratelimit.New(2, ratelimit.DefaultWindow)
	usage := &captureDecisions{}
	h := RateLimit(limiter, usage)(okHandler())

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/api/llm", nil)
		r.RemoteAddr = "10.1.2.3:5555"
		return r
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req())
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 || retryAfter > 60 {
		t.Fatalf("Retry-After = %q, want integer in [1, 60]", rec.Header().Get("Retry-After"))
	}

	if usage.admitted["10.1.2.3"] != 2 || usage.rejected["10.1.2.3"] != 1 {
		t.Fatalf("usage = %+v", usage)
	}
}

func TestRateLimitKeyedByAuthenticatedClient(t *testing.T) {
	limiter := ratelimit.New(1, ratelimit.DefaultWindow)
	h := RateLimit(limiter, nil)(okHandler())

	send := func(clientID string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/llm", nil)
		r.RemoteAddr = "10.1.2.3:5555"
		if clientID != "" {
			r = r.WithContext(WithIdentity(r.Context(), clientID, ""))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	if send("proj-a") != http.StatusOK {
		t.Fatal("proj-a first request rejected")
	}
	if send("proj-a") != http.StatusTooManyRequests {
		t.Fatal("proj-a second request allowed")
	}
	// Different project from the same address has its own bucket.
	if send("proj-b") != http.StatusOK {
		t.Fatal("proj-b blocked by proj-a's bucket")
	}
}

func TestRateLimitExemptPaths(t *testing.T) {
	limiter := ratelimit.New(1, ratelimit.DefaultWindow)
	h := RateLimit(limiter, nil, "/health", "/metrics")(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = "10.1.2.3:5555"
		h.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Fatalf("health probe %d limited: status %d", i+1, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(DefaultCORSConfig())(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/llm", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("no Access-Control-Allow-Methods header")
	}
}

func TestLoggingPreservesHandlerOutput(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), "proj-a", "user-1")
	if GetClientID(ctx) != "proj-a" || GetUserID(ctx) != "user-1" {
		t.Fatalf("identity = %q/%q", GetClientID(ctx), GetUserID(ctx))
	}
}
