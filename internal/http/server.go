package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"

	authzhttp "github.com/jwilger/authorizir/internal/authz/http"
	"github.com/jwilger/authorizir/internal/metrics"
)

// RouterConfig carries everything the API router needs: the handlers and the
// middleware configuration.
type RouterConfig struct {
	Logger *slog.Logger

	// MeterProvider enables HTTP metrics when non-nil.
	MeterProvider    metric.MeterProvider
	MetricsNamespace string

	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	CORSEnabled      bool
	CORSAllowOrigins string

	SubjectHandler    *authzhttp.EntityHandler
	ObjectHandler     *authzhttp.EntityHandler
	PermissionHandler *authzhttp.EntityHandler
	RuleHandler       *authzhttp.RuleHandler
	HierarchyHandler  *authzhttp.HierarchyHandler
	DecisionHandler   *authzhttp.DecisionHandler
}

// NewRouter assembles the Gin engine with the full middleware stack and the
// authorization API routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(cfg.Logger))

	if cfg.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MeterProvider, cfg.MetricsNamespace))
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, cfg.Logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", HealthHandler)
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Logger))
	}

	v1.POST("/subjects", cfg.SubjectHandler.Register)
	v1.GET("/subjects/:id", cfg.SubjectHandler.Get)
	v1.DELETE("/subjects/:id", cfg.SubjectHandler.Unregister)

	v1.POST("/objects", cfg.ObjectHandler.Register)
	v1.GET("/objects/:id", cfg.ObjectHandler.Get)
	v1.DELETE("/objects/:id", cfg.ObjectHandler.Unregister)

	v1.POST("/permissions", cfg.PermissionHandler.Register)
	v1.GET("/permissions/:id", cfg.PermissionHandler.Get)
	v1.DELETE("/permissions/:id", cfg.PermissionHandler.Unregister)

	v1.POST("/rules/grant", cfg.RuleHandler.Grant)
	v1.POST("/rules/deny", cfg.RuleHandler.Deny)
	v1.POST("/rules/revoke", cfg.RuleHandler.Revoke)
	v1.POST("/rules/allow", cfg.RuleHandler.Allow)
	v1.GET("/rules", cfg.RuleHandler.List)

	v1.POST("/hierarchy/:kind/children", cfg.HierarchyHandler.AddChild)
	v1.DELETE("/hierarchy/:kind/children", cfg.HierarchyHandler.RemoveChild)
	v1.GET("/members/:kind/:id", cfg.HierarchyHandler.Members)

	v1.GET("/authorize", cfg.DecisionHandler.Authorize)

	return router
}

// Server represents the API HTTP server.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new HTTP server for the given router.
func NewServer(host string, port int, logger *slog.Logger, router *gin.Engine) *Server {
	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
