package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assessor/internal/config"
	"github.com/noah-isme/gema-assessor/internal/handler"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingHandler *handler.GradingHandler
	JWTMiddleware  fiber.Handler
	RoleMiddleware fiber.Handler
	RateLimiter    fiber.Handler
	MetricsHandler fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.MetricsHandler != nil {
		app.Get("/metrics", deps.MetricsHandler)
	}

	if deps.GradingHandler == nil {
		return
	}

	guards := make([]fiber.Handler, 0, 3)
	for _, guard := range []fiber.Handler{deps.JWTMiddleware, deps.RoleMiddleware, deps.RateLimiter} {
		if guard != nil {
			guards = append(guards, guard)
		}
	}

	grading := api.Group("/grading", guards...)
	deps.GradingHandler.Register(grading)
}
