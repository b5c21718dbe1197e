// Package core provides the HTTP chassis for the Expanse storefront API.
// It creates the chi router and enforces cross-cutting concerns -- panic
// recovery, request IDs, logging, CORS, and metrics -- before requests reach
// the domain handlers.
package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"expanse/internal/config"
	"expanse/internal/telemetry"
)

// Server encapsulates the chassis-level dependencies of the API, allowing
// injection during testing and distinct configuration per environment.
// Domain handlers are mounted onto the router by the application entry point.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics telemetry.Collector

	startedAt    time.Time
	router       *chi.Mux
	healthProbes []HealthProbe
}

// NewServer initializes the chassis and prepares the router for route
// mounting. The caller mounts routes (via MountRoutes) after construction so
// tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger, metrics telemetry.Collector) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if metrics == nil {
		metrics = telemetry.NoopCollector{}
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		startedAt: time.Now().UTC(),
		router:    chi.NewRouter(),
	}
	return s, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// defaultRedactedHeaders lists header names whose values are masked in
// request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
}

// RouteRegistrar mounts a group of domain routes onto the router. The
// indirection avoids an import cycle between core and the handler packages.
type RouteRegistrar func(r chi.Router)

// MountRoutes registers the global middleware chain, the /v1 route group,
// and the top-level health endpoint.
//
// Middleware order matters:
//  1. Recoverer     - outermost, catches all panics.
//  2. RequestID     - correlation ID for tracing.
//  3. RequestLogger - structured logging with redacted headers.
//  4. CORS          - browser access headers, preflight handling.
//  5. Metrics       - request latency and count recording.
func (s *Server) MountRoutes(registrars ...RouteRegistrar) {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)

	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range registrars {
			registrar(r)
		}
	})

	s.router.Get("/health", s.HandleHealth)
}

// corsAllowedOrigins returns the configured CORS origins, defaulting to
// wildcard so the storefront works out of the box in development.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}
