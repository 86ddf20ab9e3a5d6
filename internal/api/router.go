package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/patientid/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/patientid/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/patientid/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/patientid/internal/service"
)

// bodyLimit leaves room for multipart framing around a 10MB image.
const bodyLimit = 11 * 1024 * 1024

type Dependencies struct {
	Identification *service.IdentificationService
	DB             handler.Pinger
	AdminAPIKey    string
	RateLimit      middleware.RateLimiterConfig
	Version        string
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "PatientID API",
		BodyLimit:    bodyLimit,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	version := "dev"
	var db handler.Pinger
	if r.deps != nil {
		db = r.deps.DB
		if r.deps.Version != "" {
			version = r.deps.Version
		}
	}

	// Health check endpoints (no auth required)
	healthHandler := handler.NewHealthHandler(db, version)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Only configure the matching routes if the service was provided
	if r.deps == nil || r.deps.Identification == nil {
		return
	}

	v1 := r.app.Group("/v1")

	// Identification is open to kiosks; limit it per client IP
	r.rateLimiter = middleware.NewRateLimiter(r.deps.RateLimit)
	identifyHandler := handler.NewIdentifyHandler(r.deps.Identification, r.logger)
	v1.Post("/identify", r.rateLimiter.Handler(), identifyHandler.Identify)

	// Admin routes
	adminGroup := v1.Group("/admin", middleware.AdminAuth(r.deps.AdminAPIKey))
	r.setupAdminRoutes(adminGroup)
}

func (r *Router) setupAdminRoutes(adminGroup fiber.Router) {
	descriptorsHandler := handler.NewDescriptorsHandler(r.deps.Identification, r.logger)

	descriptors := adminGroup.Group("/descriptors")
	descriptors.Post("/preload", descriptorsHandler.Preload)
	descriptors.Post("/refresh", descriptorsHandler.Refresh)
	descriptors.Get("/stats", descriptorsHandler.Stats)
	descriptors.Delete("/", descriptorsHandler.Clear)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
