package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/devicepulse/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the DevicePulse HTTP server.
type Server struct {
	httpServer *http.Server
	evaluator  LivenessEvaluator
	auth       *Authenticator
	limiter    *TenantLimiter
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithRateLimiter limits ping requests per tenant.
func WithRateLimiter(l *TenantLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a new Server instance.
func New(addr string, eval LivenessEvaluator, auth *Authenticator, logger *zap.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		evaluator: eval,
		auth:      auth,
		logger:    logger,
		mux:       mux,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerCoreRoutes()
	s.registerDeviceRoutes()

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// registerCoreRoutes sets up routes that need no authentication.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "no route for "+r.Method+" "+r.URL.Path, r.URL.Path)
	})
}

// registerDeviceRoutes mounts the authenticated device API.
func (s *Server) registerDeviceRoutes() {
	var h http.Handler = http.HandlerFunc(s.handlePing)
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	h = RequireAuthority(AuthorityTenantAdmin, AuthorityCustomerUser)(h)
	h = s.auth.Middleware(h)
	h = s.recoverPing(h)

	s.mux.Handle("GET /api/device/{deviceId}/ping", h)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-DevicePulse-Version", version.Short())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "devicepulse",
		"version": version.Map(),
	})
}
