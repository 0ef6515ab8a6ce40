package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"dgenlabs/relay/pkg/proxy/middleware"
)

// TokenHeader is the HTTP header carrying the API token.
const TokenHeader = "X-API-Token"

// Options configures the authentication middleware.
type Options struct {
	// AllowDefault admits requests without a token under a default
	// identity. Development convenience; never enable in production.
	AllowDefault bool

	// DefaultSOEID and DefaultProject are the identity assigned to
	// tokenless requests when AllowDefault is set.
	DefaultSOEID   string
	DefaultProject string

	// ExemptPaths bypass authentication entirely (health, metrics).
	ExemptPaths []string
}

// Middleware authenticates requests via the X-API-Token header and stores
// the verified identity in the request context for the handlers and the
// rate limiter.
func Middleware(tm *TokenManager, opts Options) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(opts.ExemptPaths))
	for _, p := range opts.ExemptPaths {
		exempt[p] = struct{}{}
	}
	logger := slog.Default().With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := r.Header.Get(TokenHeader)
			if tokenString == "" {
				if opts.AllowDefault {
					ctx := middleware.WithIdentity(r.Context(), opts.DefaultProject, opts.DefaultSOEID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				logger.Warn("missing API token",
					"remote_addr", r.RemoteAddr, "path", r.URL.Path)
				unauthorized(w, "missing API token", middleware.GetRequestID(r.Context()))
				return
			}

			if tm == nil {
				// No signing secret configured; presented tokens cannot
				// be verified.
				unauthorized(w, "invalid API token", middleware.GetRequestID(r.Context()))
				return
			}

			claims, err := tm.Verify(tokenString)
			if err != nil {
				logger.Warn("invalid API token",
					"error", err, "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				unauthorized(w, "invalid API token", middleware.GetRequestID(r.Context()))
				return
			}

			ctx := middleware.WithIdentity(r.Context(), claims.ProjectID, claims.SOEID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":      "unauthorized",
		"message":    message,
		"request_id": requestID,
	})
}
