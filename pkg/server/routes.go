package server

import (
	"net/http"

	"dgenlabs/relay/pkg/proxy/middleware"
	"dgenlabs/relay/pkg/security/auth"
)

// Paths that stay reachable without a token and outside the rate limit
// gate, so probes and scrapers never consume client quota.
var openPaths = []string{"/health", "/info", "/metrics", "/metrics/prometheus", "/auth/token"}

// Handler builds the full route table with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/llm", s.handleGenerate)
	mux.HandleFunc("POST /telemetry", s.handleIngest)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("GET /metrics/prometheus", s.metrics.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /limits/usage", s.handleUsage)
	mux.HandleFunc("POST /auth/token", s.handleToken)

	var handler http.Handler = mux

	// Innermost first. The rate limiter keys on the authenticated
	// identity, so auth wraps it.
	handler = middleware.RateLimit(s.limiter, s.decisionRecorder(), openPaths...)(handler)

	handler = auth.Middleware(s.tokens, auth.Options{
		AllowDefault:   s.cfg.Auth.AllowDefaultToken,
		DefaultSOEID:   s.cfg.Auth.DefaultSOEID,
		DefaultProject: s.cfg.Auth.DefaultProject,
		ExemptPaths:    openPaths,
	})(handler)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.cfg.Server.AllowedOrigins
	handler = middleware.CORS(corsConfig)(handler)

	handler = middleware.RequestID(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Recovery(handler)

	return handler
}

// decisionRecorder feeds rate-limit decisions to both the usage store and
// the Prometheus rejection counter.
func (s *Server) decisionRecorder() middleware.DecisionRecorder {
	return decisionFunc(func(clientID string, allowed bool) {
		if !allowed && s.metrics != nil {
			s.metrics.RecordRejection(clientID)
		}
		if s.usage != nil {
			s.usage.RecordDecision(clientID, allowed)
		}
	})
}

type decisionFunc func(clientID string, allowed bool)

func (f decisionFunc) RecordDecision(clientID string, allowed bool) { f(clientID, allowed) }
