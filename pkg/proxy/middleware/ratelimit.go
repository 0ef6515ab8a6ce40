package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"dgenlabs/relay/pkg/limits/ratelimit"
)

// DecisionRecorder receives admission decisions for usage accounting.
// Implementations must not block.
type DecisionRecorder interface {
	RecordDecision(clientID string, allowed bool)
}

// RateLimit gates requests through the per-client admission window.
// Clients are keyed by authenticated project identity when available,
// falling back to the remote address. Exempt paths (health and metrics
// probes) bypass the gate entirely. Rejected requests get a 429 with a
// Retry-After header rounded up to whole seconds.
func RateLimit(limiter *ratelimit.Limiter, usage DecisionRecorder, exemptPaths ...string) func(http.Handler) http.Handler {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := GetClientID(r.Context())
			if key == "" {
				key = remoteHost(r)
			}

			d := limiter.Admit(key)
			if usage != nil {
				usage.RecordDecision(key, d.Allowed)
			}
			if !d.Allowed {
				seconds := int(math.Ceil(d.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
					"request rate limit exceeded, slow down", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
