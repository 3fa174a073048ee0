package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/folio-go-api/internal/config"
	"github.com/noah-isme/folio-go-api/internal/handler"
	"github.com/noah-isme/folio-go-api/internal/middleware"
	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DocumentHandler  *handler.DocumentHandler
	LifecycleHandler *handler.LifecycleHandler
	ReviewHandler    *handler.ReviewHandler
	JWTMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.DocumentHandler != nil {
		documents := app.Group("/api/v1/documents", jwtMiddleware)
		deps.DocumentHandler.Register(documents)

		if deps.LifecycleHandler != nil {
			deps.LifecycleHandler.Register(documents, middleware.RequireRole(models.RoleTeacher))
		}
	}

	if deps.ReviewHandler != nil {
		review := app.Group("/api/v1/review", jwtMiddleware, middleware.RequireRole(models.RoleTeacher))
		deps.ReviewHandler.Register(review)
	}
}
