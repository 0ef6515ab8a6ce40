package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dgenlabs/relay/pkg/proxy/middleware"
)

func TestTokenRoundTrip(t *testing.T) {
	tm, err := NewTokenManager("test-secret")
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	token, err := tm.Generate("ab12345", "proj-a")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SOEID != "ab12345" || claims.ProjectID != "proj-a" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ExpiresAt != nil {
		t.Error("token should not expire")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tm1, _ := NewTokenManager("secret-one")
	tm2, _ := NewTokenManager("secret-two")

	token, err := tm1.Generate("ab12345", "proj-a")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := tm2.Verify(token); err == nil {
		t.Fatal("token verified under a different secret")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	for _, bad := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := tm.Verify(bad); err == nil {
			t.Fatalf("Verify(%q) succeeded", bad)
		}
	}
}

func TestGenerateRequiresIdentity(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	if _, err := tm.Generate("", "proj-a"); err == nil {
		t.Fatal("empty soeid accepted")
	}
	if _, err := tm.Generate("ab12345", ""); err == nil {
		t.Fatal("empty project accepted")
	}
}

func identityEcho(t *testing.T) (http.Handler, *string, *string) {
	t.Helper()
	var clientID, userID string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID = middleware.GetClientID(r.Context())
		userID = middleware.GetUserID(r.Context())
	})
	return h, &clientID, &userID
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	inner, clientID, userID := identityEcho(t)
	h := Middleware(tm, Options{})(inner)

	token, _ := tm.Generate("ab12345", "proj-a")
	r := httptest.NewRequest(http.MethodPost, "/api/llm", nil)
	r.Header.Set(TokenHeader, token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *clientID != "proj-a" || *userID != "ab12345" {
		t.Fatalf("identity = %q/%q", *clientID, *userID)
	}
}

func TestMiddlewareRejectsMissingAndInvalidTokens(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	h := Middleware(tm, Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without valid token")
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/llm", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", rec.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/api/llm", nil)
	r.Header.Set(TokenHeader, "bogus")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareDefaultIdentity(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	inner, clientID, userID := identityEcho(t)
	h := Middleware(tm, Options{
		AllowDefault:   true,
		DefaultSOEID:   "anonymous",
		DefaultProject: "default",
	})(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/llm", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *clientID != "default" || *userID != "anonymous" {
		t.Fatalf("identity = %q/%q", *clientID, *userID)
	}
}

func TestMiddlewareExemptPaths(t *testing.T) {
	tm, _ := NewTokenManager("test-secret")
	h := Middleware(tm, Options{ExemptPaths: []string{"/health"}})(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("exempt path status = %d, want 200", rec.Code)
	}
}
