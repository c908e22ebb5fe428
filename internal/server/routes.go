package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/observability"
	"github.com/signrelay/signrelay/internal/server/handlers"
)

// AdminTokenEnv enables POST /admin/signal when set.
const AdminTokenEnv = "SIGNRELAY_ADMIN_TOKEN"

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	s.registerAdminEndpoint()
}

// FacadeRoutes mounts the orchestrator state, respond and events routes.
func FacadeRoutes(f *handlers.Facade) Mount {
	return func(r chi.Router) {
		r.Post("/state/push", f.PushState)
		r.Get("/state", f.GetState)
		r.Post("/state/clear", f.ClearState)
		r.Post("/respond", f.Respond)
		r.Get("/status", f.GetStatus)
		r.Get("/events", f.Events)
	}
}

// BackendRoutes mounts the generative backend service routes.
func BackendRoutes(b *handlers.Backend) Mount {
	return func(r chi.Router) {
		r.Post("/respond", b.Respond)
		r.Post("/process_sentence", b.ProcessSentence)
		r.Get("/status", b.Status)
		r.Post("/trigger_check", b.TriggerCheck)
		r.Get("/test", b.Test)
	}
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	adminToken := os.Getenv(AdminTokenEnv)
	logger := observability.Logger()

	if adminToken == "" {
		logger.Debug("Admin signal endpoint disabled (no " + AdminTokenEnv + " set)")
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
		Manager:   nil,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	logger.Info("Admin signal endpoint enabled",
		zap.String("path", "/admin/signal"),
		zap.String("auth", "bearer token"),
		zap.String("rate_limit", "10/min, burst 5"))
	logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
}
