package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/http/handlers"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Grievances     *handlers.GrievancesHandler
	Escalations    *handlers.EscalationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	grievances := api.Group("/grievances")
	grievances.Post("", cfg.Grievances.Create)
	grievances.Get("", cfg.Grievances.List)
	grievances.Get("/:id", cfg.Grievances.Get)
	grievances.Get("/:id/priority", cfg.Escalations.Priority)
	grievances.Get("/:id/reopenable", cfg.Escalations.Reopenable)
	grievances.Post("/:id/reopen", cfg.Grievances.Reopen)

	officerRoles := auth.RequireRole(domain.RoleOfficer, domain.RoleHRAdmin, domain.RoleSuperAdmin)
	grievances.Patch("/:id/status", officerRoles, cfg.Grievances.UpdateStatus)
	grievances.Post("/:id/assign", officerRoles, cfg.Grievances.Assign)
	grievances.Post("/:id/escalate", officerRoles, cfg.Escalations.Escalate)
	grievances.Post("/:id/deescalate", officerRoles, cfg.Escalations.DeEscalate)
	grievances.Get("/:id/escalations", officerRoles, cfg.Escalations.ListRecords)

	api.Get("/escalation-rules", officerRoles, cfg.Escalations.ListRules)
}
