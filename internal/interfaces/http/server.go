// Package http provides the HTTP adapter for the application layer. It is a
// thin translation layer: requests become service calls, service errors
// become status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/approvalflow/engine/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config            ServerConfig
	httpServer        *http.Server
	router            *gin.Engine
	definitionService service.DefinitionService
	workflowService   service.WorkflowService
	userService       service.UserService
	metricsHandler    http.Handler
	logger            Logger
}

// NewServer creates a new HTTP server with the given services. The metrics
// handler is optional; pass nil to skip the /metrics endpoint.
func NewServer(
	config ServerConfig,
	definitionService service.DefinitionService,
	workflowService service.WorkflowService,
	userService service.UserService,
	metricsHandler http.Handler,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:            config,
		router:            gin.New(),
		definitionService: definitionService,
		workflowService:   workflowService,
		userService:       userService,
		metricsHandler:    metricsHandler,
		logger:            logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.definitionService, s.workflowService, s.userService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	if s.metricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	api := s.router.Group("/api/v1")
	api.Use(callerContext())
	{
		definitions := api.Group("/definitions")
		{
			definitions.POST("", handlers.CreateDefinition)
			definitions.GET("", handlers.ListDefinitions)
			definitions.GET("/:id", handlers.GetDefinition)
			definitions.PUT("/:id", handlers.UpdateDefinition)
			definitions.POST("/:id/validate", handlers.ValidateDefinition)
			definitions.POST("/:id/publish", handlers.PublishDefinition)
			definitions.POST("/:id/archive", handlers.ArchiveDefinition)
		}

		instances := api.Group("/instances")
		{
			instances.POST("", handlers.CreateInstance)
			instances.GET("", handlers.ListInstances)
			instances.GET("/:id", handlers.GetInstance)
			instances.GET("/:id/history", handlers.InstanceHistory)
			instances.POST("/:id/submit", handlers.SubmitInstance)
			instances.POST("/:id/approve", handlers.ApproveStep)
			instances.POST("/:id/reject", handlers.RejectStep)
			instances.POST("/:id/request-changes", handlers.RequestChanges)
			instances.POST("/:id/cancel", handlers.CancelInstance)
			instances.POST("/:id/resubmit", handlers.ResubmitInstance)
		}

		users := api.Group("/users")
		{
			users.POST("", handlers.RegisterUser)
			users.GET("/:id", handlers.GetUser)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
