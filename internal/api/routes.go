package api

import (
	"prism/internal/api/handlers"
	"prism/internal/api/middleware"
	"prism/internal/config"
	"prism/internal/reporting"
	"prism/internal/service"

	"github.com/gin-gonic/gin"
)

// Router holds the HTTP router and dependencies
type Router struct {
	engine        *gin.Engine
	config        *config.Config
	reporter      reporting.Reporter
	rateLimiter   *middleware.RateLimiter
	imageHandler  *handlers.ImageHandler
	healthHandler *handlers.HealthHandler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	cfg *config.Config,
	derivation service.DerivationService,
	customers service.CustomerStore,
	healthService service.HealthService,
	reporter reporting.Reporter,
) *Router {
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := &Router{
		engine:        gin.New(),
		config:        cfg,
		reporter:      reporter,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimit.Derive),
		imageHandler:  handlers.NewImageHandler(derivation, customers, reporter, cfg),
		healthHandler: handlers.NewHealthHandler(healthService, derivation, customers, cfg.Server.TestImage),
	}

	router.setupMiddleware()
	router.setupRoutes()

	return router
}

// setupMiddleware configures all middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(gin.Logger())
	r.engine.Use(middleware.Recovery(r.reporter))

	// Request ID middleware for tracing
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(r.config))
	r.engine.Use(middleware.SecurityHeaders(r.config))
}

// setupRoutes configures the fixed routes. Everything else is an image path.
func (r *Router) setupRoutes() {
	r.engine.GET("/", r.imageHandler.Index)
	r.engine.GET("/elb-health/", r.healthHandler.ELBHealth)
	r.engine.GET("/health", r.healthHandler.Health)

	r.engine.GET("/favicon.ico", r.imageHandler.NotFound)
	r.engine.GET("/robots.txt", r.imageHandler.NotFound)
	r.engine.GET("/setdpr/:dpr", r.imageHandler.SetDPR)

	test := r.engine.Group("/test")
	{
		test.GET("/info", r.imageHandler.TestInfo)
		test.GET("/resize", r.imageHandler.TestResize)
	}

	if r.config.IsDevelopment() {
		r.engine.GET("/debug/vars", r.healthHandler.Metrics)
	}

	r.engine.NoRoute(r.rateLimiter.Middleware(), r.imageHandler.Derive)
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// PrintRoutes prints all registered routes (useful for debugging)
func (r *Router) PrintRoutes() {
	for _, route := range r.engine.Routes() {
		println(route.Method, route.Path)
	}
}
