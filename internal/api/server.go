// Package api exposes the HTTP surface: thin request routing over the
// workflow store and the execution queue. Execution never happens
// synchronously here.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowmesh/flowmesh/internal/config"
)

// Server represents the API server
type Server struct {
	router   *gin.Engine
	server   *http.Server
	handlers *Handlers
	config   config.APIConfig
}

// NewServer creates a new API server
func NewServer(handlers *Handlers, cfg config.APIConfig) *Server {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())

	if cfg.RateLimit.Enabled {
		router.Use(RateLimiter(cfg.RateLimit))
	}

	server := &Server{
		router:   router,
		handlers: handlers,
		config:   cfg,
		server: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}

	server.setupRoutes()

	return server
}

// setupRoutes initializes all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)

	s.router.GET("/workflows", s.handlers.ListWorkflows)
	s.router.POST("/workflows", s.handlers.CreateWorkflow)
	s.router.DELETE("/workflows", s.handlers.DeleteWorkflow)
	s.router.PUT("/workflows/:id", s.handlers.UpdateWorkflow)
	s.router.GET("/workflows/:id/executions/latest", s.handlers.LatestExecutionForWorkflow)
	s.router.POST("/workflows/:id/execute", s.handlers.ExecuteWorkflow)

	s.router.POST("/executions", s.handlers.CreateExecution)
	s.router.GET("/executions", s.handlers.QueryExecutions)
	s.router.GET("/executions/:id/status", s.handlers.ExecutionStatus)
}

// Router returns the underlying gin engine, used by handler tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
