package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/ada-judge-api/internal/config"
	"github.com/noah-isme/ada-judge-api/internal/handler"
	"github.com/noah-isme/ada-judge-api/internal/middleware"
	"github.com/noah-isme/ada-judge-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	UserHandler       *handler.UserHandler
	ProblemHandler    *handler.ProblemHandler
	SubmissionHandler *handler.SubmissionHandler
	DB                *gorm.DB
	Cache             *redis.Client
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Cache))
	app.Get("/metrics", observability.MetricsHandler())

	auth := middleware.JWTProtected(cfg.JWTSecret)
	optional := middleware.JWTOptional(cfg.JWTSecret)

	if deps.UserHandler != nil {
		deps.UserHandler.Register(app.Group("/user"), optional, auth, middleware.RateLimit("change-password", 5, time.Minute))
	}

	if deps.ProblemHandler != nil {
		deps.ProblemHandler.Register(app.Group("/problem", auth))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(app.Group("/submission"), auth, middleware.JudgeToken(cfg.JudgeToken))
	}
}
