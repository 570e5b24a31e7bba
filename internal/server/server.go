// Package server contains the HTTP handlers for the site, the public
// maintenance status API and the admin control surface.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "spekulus/docs" // swagger docs
	"spekulus/internal/audit"
	"spekulus/internal/config"
	"spekulus/internal/gate"
	"spekulus/internal/manifest"
	"spekulus/internal/middleware"
	"spekulus/internal/models"
	"spekulus/internal/render"
	"spekulus/internal/repository"
	"spekulus/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config             *config.Config
	db                 *gorm.DB
	redis              *redis.Client
	app                *fiber.App
	promMiddleware     *fiberprometheus.FiberPrometheus
	site               *manifest.Manifest
	renderer           *render.Renderer
	exemptions         gate.Exemptions
	settingsRepo       repository.SettingsRepository
	auditRepo          repository.AuditRepository
	adminRepo          repository.AdminUserRepository
	audit              audit.Logger
	gateService        *service.GateService
	maintenanceService *service.MaintenanceService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; login throttling then fails open and logout is refused.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, site *manifest.Manifest) (*Server, error) {
	if site == nil {
		return nil, errors.New("route manifest is required")
	}

	renderer, err := render.New(cfg.MaintenanceDefaultMessage)
	if err != nil {
		return nil, err
	}

	exemptions := gate.NewExemptions(cfg.ExtraExemptPrefixes()...)

	settingsRepo := repository.NewSettingsRepository(db)
	pageRepo := repository.NewPageStatusRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	auditWriter := audit.NewWriter(auditRepo)

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("spekulus")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		site:           site,
		renderer:       renderer,
		exemptions:     exemptions,
		settingsRepo:   settingsRepo,
		auditRepo:      auditRepo,
		adminRepo:      repository.NewAdminUserRepository(db),
		audit:          auditWriter,
	}
	server.gateService = service.NewGateService(settingsRepo, pageRepo, exemptions)
	server.maintenanceService = service.NewMaintenanceService(
		settingsRepo, pageRepo, auditWriter, exemptions, cfg.MaintenanceDefaultMessage,
	)

	return server, nil
}

// App builds the Fiber app with middleware and routes wired.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:   "Spekulus",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
				return models.RespondWithError(c, code, models.NewInternalError(err))
			}
			return models.RespondWithError(c, code, err)
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application. Everything
// registered before the maintenance gate is answered without consulting it.
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public maintenance status, polled by the maintenance screen countdown
	api.Get("/maintenance", s.GetPublicMaintenanceStatus)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Admin routes
	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Get("/maintenance", s.GetMaintenanceStatus)
	admin.Post("/maintenance/activate", s.ActivateMaintenance)
	admin.Post("/maintenance/deactivate", s.DeactivateMaintenance)
	admin.Put("/maintenance/message", s.UpdateMaintenanceMessage)
	admin.Get("/pages", s.GetPages)
	admin.Put("/pages/status", s.SetPageStatus)
	admin.Get("/audit", s.GetAuditLog)
	admin.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Spekulus Metrics Dashboard",
	}))

	// Unknown API paths answer in JSON rather than with the site's not-found page
	api.All("/*", func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Route", c.Path()))
	})

	// Site pages, behind the maintenance gate
	app.Use(middleware.MaintenanceGate(s.gateService, s.renderer, s.exemptions))
	app.Get("/*", s.RenderPage)
	app.All("/*", s.NotFoundPage)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis only backs login
// throttling and logout, so its absence degrades but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
