package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Headers the browser client sends with every call.
const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

type AppConfig struct {
	Name         string
	Version      string
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AccessLog    bool
	// RequestTimeout bounds the pipeline of one request; zero means none.
	RequestTimeout time.Duration
}

type Routes struct {
	Analyze *AnalyzeHandler
	// Runs is nil when auditing is disabled.
	Runs    *RunHandler
	Metrics http.Handler

	OracleProvider string
	OracleReady    func() error
}

// NewApp builds the Fiber app with middleware and every route mounted.
func NewApp(cfg AppConfig, r Routes) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.Name,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: corsAllowHeaders,
	}))
	app.Use(func(c *fiber.Ctx) error {
		requestID(c)
		if cfg.RequestTimeout > 0 {
			ctx, cancel := context.WithTimeout(c.UserContext(), cfg.RequestTimeout)
			defer cancel()
			c.SetUserContext(ctx)
		}
		return c.Next()
	})

	// Routes
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		ready := r.OracleReady == nil || r.OracleReady() == nil
		return c.JSON(fiber.Map{
			"status": "healthy",
			"oracle": fiber.Map{"provider": r.OracleProvider, "configured": ready},
			"time":   time.Now(),
		})
	})

	endpoints := []string{
		"POST /api/v1/analyze",
		"POST /api/v1/analyze-policy",
		"POST /api/v1/prequalify",
		"GET /api/v1/health",
	}

	api.Post("/analyze", r.Analyze.HandleAnalyze)
	api.Post("/analyze-policy", r.Analyze.HandleAnalyzePolicy)
	api.Post("/prequalify", r.Analyze.HandlePrequalify)

	if r.Runs != nil {
		api.Get("/runs", r.Runs.HandleListRuns)
		api.Get("/runs/:id", r.Runs.HandleGetRun)
		endpoints = append(endpoints, "GET /api/v1/runs", "GET /api/v1/runs/:id")
	}

	if r.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.Metrics))
		endpoints = append(endpoints, "GET /metrics")
	}

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   cfg.Name,
			"version":   cfg.Version,
			"endpoints": endpoints,
		})
	})

	return app
}
