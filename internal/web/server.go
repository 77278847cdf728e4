package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"monitord/internal/cache"
	"monitord/internal/engine"
	"monitord/internal/models"
	"monitord/internal/stream"
)

// Engine is the monitoring engine as seen by the HTTP layer.
type Engine interface {
	Status() engine.Status
	LatestSnapshot(ctx context.Context) models.Snapshot
	Summary() models.AlertSummary
	History(limit int) []models.Alert
	Rules() []models.MonitoringRule
	SetRuleEnabled(name string, enabled bool) error
	Launch(ctx context.Context, interval time.Duration) error
	Stop() error
	Restart(ctx context.Context, interval time.Duration) error
	ResolveAlert(ctx context.Context, id string) bool
	SendTestAlert(ctx context.Context, channels []models.Channel, sev models.Severity) (models.Alert, []models.DeliveryResult)
}

type Options struct {
	Engine          Engine
	Cache           *cache.Cache
	Hub             *stream.Hub
	Metrics         http.Handler
	JWTSecret       string
	DefaultInterval time.Duration
}

type Server struct {
	engine   Engine
	hub      *stream.Hub
	log      *slog.Logger
	interval time.Duration
	app      *fiber.App

	// base outlives requests; loops started over HTTP run under it.
	base context.Context
}

func NewServer(opts Options, logger *slog.Logger) *Server {
	s := &Server{
		engine:   opts.Engine,
		hub:      opts.Hub,
		log:      logger,
		interval: opts.DefaultInterval,
		base:     context.Background(),
	}
	if s.interval <= 0 {
		s.interval = engine.DefaultInterval
	}
	if opts.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, control endpoints are unauthenticated")
	}

	app := fiber.New(fiber.Config{
		AppName:               "monitord",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(requestLogger(logger))
	if opts.Cache != nil {
		app.Use(newPerfRecorder(opts.Cache).middleware())
	}

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}
	if s.hub != nil {
		app.Use("/ws", stream.Upgrade)
		app.Get("/ws/alerts", s.hub.Handler())
	}

	mon := app.Group("/api/monitoring")
	mon.Get("/status", s.handleStatus)
	mon.Get("/metrics", s.handleMetrics)
	mon.Get("/alerts", s.handleAlerts)
	mon.Get("/rules", s.handleRules)

	auth := jwtProtected(opts.JWTSecret)
	mon.Post("/start", auth, s.handleStart)
	mon.Post("/stop", auth, s.handleStop)
	mon.Post("/restart", auth, s.handleRestart)
	mon.Post("/rules/:name/toggle", auth, s.handleToggleRule)
	mon.Post("/alerts/test", auth, s.handleTestAlert)
	mon.Post("/alerts/:id/resolve", auth, s.handleResolve)

	s.app = app
	return s
}

func (s *Server) App() *fiber.App { return s.app }

// SetBaseContext sets the context monitoring loops started over HTTP run in.
func (s *Server) SetBaseContext(ctx context.Context) { s.base = ctx }

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown(ctx context.Context) error { return s.app.ShutdownWithContext(ctx) }

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
