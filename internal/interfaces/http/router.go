package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/handlers"
	"github.com/turtacn/IPFiling-Assistant/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	// Handlers
	SessionHandler     *handlers.SessionHandler
	ApplicationHandler *handlers.ApplicationHandler
	HealthHandler      *handlers.HealthHandler

	// Middleware
	Auth        gin.HandlerFunc
	CORS        *middleware.CORSConfig
	TaskLimiter middleware.RateLimiter
	Logging     middleware.LoggingConfig
	MaxBodySize int64

	// Infrastructure
	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	HTTPMetrics      middleware.HTTPMetrics
	MetricsPath      string
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration: global middleware, public probes and metrics, and the
// authenticated API v1 group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("http")

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// --- Global middleware (applied to every request) ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(logger, cfg.Logging, cfg.HTTPMetrics))
	r.Use(middleware.BodyLimit(cfg.MaxBodySize))

	// --- Public endpoints (no auth) ---
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	// --- API v1 (authenticated) ---
	api := r.Group("/api/v1")
	if cfg.Auth != nil {
		api.Use(cfg.Auth)
	}
	var taskLimit []gin.HandlerFunc
	if cfg.TaskLimiter != nil {
		taskLimit = append(taskLimit, middleware.RateLimit(cfg.TaskLimiter))
	}

	registerSessionRoutes(api, cfg.SessionHandler, taskLimit)
	registerApplicationRoutes(api, cfg.ApplicationHandler)

	return r
}

// registerSessionRoutes mounts session endpoints under /sessions. The
// background task endpoints additionally pass through limit.
func registerSessionRoutes(r *gin.RouterGroup, h *handlers.SessionHandler, limit []gin.HandlerFunc) {
	if h == nil {
		return
	}
	r.POST("/sessions", h.Create)

	item := r.Group("/sessions/:id")
	item.GET("", h.Get)
	item.DELETE("", h.Discard)
	item.PUT("/filing-type", h.SelectFilingType)

	// Wizard navigation
	item.POST("/advance", h.Advance)
	item.POST("/retreat", h.Retreat)
	item.POST("/reset", h.Reset)

	// Record
	item.PATCH("/record", h.MergeFields)
	item.GET("/validate", h.Validate)
	item.GET("/report", h.Report)
	item.GET("/export", h.Export)
	item.POST("/import", h.Import)

	// Uploads
	item.POST("/uploads", h.AddUpload)
	item.DELETE("/uploads/:uploadId", h.RemoveUpload)

	// Background tasks
	limited := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limit...), fn)
	}
	item.POST("/suggestions", limited(h.RequestSuggestions)...)
	item.POST("/documents", limited(h.GenerateDocument)...)

	item.POST("/save", h.Save)
}

// registerApplicationRoutes mounts saved application endpoints under
// /applications.
func registerApplicationRoutes(r *gin.RouterGroup, h *handlers.ApplicationHandler) {
	if h == nil {
		return
	}
	r.GET("/applications", h.List)

	item := r.Group("/applications/:id")
	item.GET("", h.Get)
	item.DELETE("", h.Delete)
	item.POST("/resume", h.Resume)
}

//Personal.AI order the ending
