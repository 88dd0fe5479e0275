package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/onboarding-service/internal/api/http/handlers"
	"github.com/spec-kit/onboarding-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Runs           *handlers.RunsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	app.Post("/runs", cfg.AuthMiddleware.Handle, cfg.Runs.Trigger)
}
