package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"dgenlabs/relay/pkg/config"
	"dgenlabs/relay/pkg/limits/ratelimit"
	"dgenlabs/relay/pkg/limits/storage"
	"dgenlabs/relay/pkg/proxy"
	"dgenlabs/relay/pkg/security/auth"
	"dgenlabs/relay/pkg/telemetry/metrics"
	"dgenlabs/relay/pkg/telemetry/store"
)

// Server is the HTTP front door of the relay. It wires the middleware
// chain and routes onto the proxy, the telemetry store, and the rate
// limiter.
type Server struct {
	cfg     *config.Config
	version string

	proxy   *proxy.Proxy
	store   *store.Store
	limiter *ratelimit.Limiter
	usage   *storage.UsageStore
	tokens  *auth.TokenManager
	metrics *metrics.RequestMetrics

	httpServer   *http.Server
	logger       *slog.Logger
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
}

// Options carries the server's collaborators. Usage may be nil when
// admission accounting is disabled.
type Options struct {
	Config  *config.Config
	Version string
	Proxy   *proxy.Proxy
	Store   *store.Store
	Limiter *ratelimit.Limiter
	Usage   *storage.UsageStore
	Tokens  *auth.TokenManager
	Metrics *metrics.RequestMetrics
}

// New creates a server from its collaborators.
func New(opts Options) *Server {
	return &Server{
		cfg:     opts.Config,
		version: opts.Version,
		proxy:   opts.Proxy,
		store:   opts.Store,
		limiter: opts.Limiter,
		usage:   opts.Usage,
		tokens:  opts.Tokens,
		metrics: opts.Metrics,
		logger:  slog.Default().With("component", "server"),
	}
}

// Start runs the HTTP server until the context is cancelled or the
// listener fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting relay server", "address", s.cfg.Server.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server, bounded by the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown",
			"timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("relay server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the listener is up.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
