package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/config"
	"github.com/riftlens/riftlens/internal/observability"
	"github.com/riftlens/riftlens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	s.router.Get("/metrics", MetricsHandler)

	if s.deps.Sessions != nil && s.deps.Resolver != nil {
		s.router.Get("/ws", s.handleWebsocket)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/sessions", s.listSessions)
		r.Get("/sessions/{matchID}", s.getSession)
		r.Get("/quota", s.getQuota)
		r.Get("/champions/averages", s.getChampionAverages)
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	envVar := config.EnvPrefix + "_ADMIN_TOKEN"
	adminToken := os.Getenv(envVar)

	if adminToken == "" {
		observability.Debug("Admin signal endpoint disabled (no " + envVar + " set)")
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10, // per minute
		RateBurst: 5,
		Manager:   nil,
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	observability.Info("Admin signal endpoint enabled",
		zap.String("path", "/admin/signal"),
		zap.String("auth", "bearer token"),
		zap.String("rate_limit", "10/min, burst 5"))
	observability.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
}
