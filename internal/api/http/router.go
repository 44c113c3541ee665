package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/http/handlers"
	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	// Static segments before /:id.
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/level/:level", cfg.Tickets.ListByLevel)

	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/logs", cfg.Tickets.ListLogs)
	tickets.Get("/:id/permissions", cfg.Tickets.Permissions)

	tickets.Post("/:id/update-l1", auth.RequireRole(domain.RoleL1), cfg.Tickets.UpdateAtLevel(domain.LevelOne))
	tickets.Post("/:id/update-l2", auth.RequireRole(domain.RoleL2), cfg.Tickets.UpdateAtLevel(domain.LevelTwo))
	tickets.Post("/:id/update-l3", auth.RequireRole(domain.RoleL3), cfg.Tickets.UpdateAtLevel(domain.LevelThree))

	tickets.Post("/:id/escalate-l2", auth.RequireRole(domain.RoleL1), cfg.Tickets.Escalate(domain.LevelTwo))
	tickets.Post("/:id/escalate-l3", auth.RequireRole(domain.RoleL2), cfg.Tickets.Escalate(domain.LevelThree))

	tickets.Post("/:id/resolve", auth.RequireRole(domain.RoleL3), cfg.Tickets.Resolve)
}
