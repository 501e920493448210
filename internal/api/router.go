package api

import (
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/welldanyogia/node-attachments-backend/internal/api/handlers"
	"github.com/welldanyogia/node-attachments-backend/internal/api/middleware"
	"github.com/welldanyogia/node-attachments-backend/internal/logger"
	"github.com/welldanyogia/node-attachments-backend/internal/services"
	"github.com/welldanyogia/node-attachments-backend/internal/websocket"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB             *gorm.DB
	Service        services.AttachmentService
	Hub            *websocket.Hub
	Upgrader       gorillaws.Upgrader
	Logger         *slog.Logger
	SecurityLogger *logger.SecurityLogger

	// Security configuration
	APIKey         string // API key for /api routes (empty = disabled)
	AllowedOrigins string // Comma separated CORS origins
	AppEnv         string
	RateLimiter    *middleware.IPRateLimiter // nil = no rate limiting

	MaxFileSize int64  // Upload body limit, before multipart overhead
	StorageRoot string // Blob directory probed by /health and /ready

	// Metrics is served on /metrics when set
	Metrics prometheus.Gatherer
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	secLogger := cfg.SecurityLogger
	if secLogger == nil {
		secLogger = logger.NewSecurityLoggerWithHandler(log.Handler())
	}

	// Order matters: ids and panic recovery first, logging last so it
	// sees the final status.
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover(log))
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.AppEnv))
	if cfg.RateLimiter != nil {
		e.Use(middleware.RateLimiter(cfg.RateLimiter, secLogger))
	}
	e.Use(middleware.RequestLogger(log))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.StorageRoot)
	attachmentHandler := handlers.NewAttachmentHandler(cfg.Service, secLogger, log)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}

	if cfg.Hub != nil {
		wsHandler := handlers.NewWebSocketHandler(cfg.Hub, cfg.Upgrader, log)
		e.GET("/ws", wsHandler.Connect)
	}

	// API routes
	api := e.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKey, secLogger, log))

	attachments := api.Group("/attachments")

	// Node-scoped routes
	attachments.GET("/node/:node_id", attachmentHandler.List)
	attachments.GET("/node/:node_id/count", attachmentHandler.Count)
	attachments.POST("/node/:node_id", attachmentHandler.Upload, middleware.UploadBodyLimit(cfg.MaxFileSize))
	attachments.DELETE("/node/:node_id", attachmentHandler.DeleteByNode)

	// Single attachment routes
	attachments.GET("/download/:id", attachmentHandler.Download)
	attachments.GET("/:id", attachmentHandler.Get)
	attachments.DELETE("/:id", attachmentHandler.Delete)

	return e
}
