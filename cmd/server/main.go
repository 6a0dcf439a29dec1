package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowmesh/flowmesh/internal/api"
	"github.com/flowmesh/flowmesh/internal/cache"
	"github.com/flowmesh/flowmesh/internal/config"
	"github.com/flowmesh/flowmesh/internal/database"
	"github.com/flowmesh/flowmesh/internal/engine"
	"github.com/flowmesh/flowmesh/internal/integration"
	"github.com/flowmesh/flowmesh/internal/observability"
	"github.com/flowmesh/flowmesh/internal/repository"
	"github.com/flowmesh/flowmesh/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewLogger("server")

	// Initialize database and apply migrations
	db, err := database.NewDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatalf("Database connection is not alive (ping failed): %v", err)
	}

	// Initialize cache
	cacheClient, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheClient.Close()

	// Initialize repositories
	workflows := repository.NewCachedWorkflowRepository(
		repository.NewWorkflowRepository(db.GetDB()),
		cacheClient,
		cfg.Cache.TTL,
	)
	executions := repository.NewExecutionRepository(db.GetDB())

	// Initialize the integration registry with the built-in portfolio
	registry := integration.NewRegistry(logger.WithPrefix("integration.registry"))
	if err := integration.RegisterBuiltins(registry); err != nil {
		log.Fatalf("Failed to register integrations: %v", err)
	}

	// Initialize engine and fail executions stranded by a crash
	eng := engine.New(executions, registry, logger.WithPrefix("engine"))
	if _, err := eng.RecoverStuck(ctx, "execution interrupted by restart"); err != nil {
		log.Fatalf("Failed to recover stuck executions: %v", err)
	}

	// Start queue processors
	processors := make([]*worker.Processor, 0, cfg.Worker.Count)
	for i := 0; i < cfg.Worker.Count; i++ {
		p := worker.NewProcessor(
			executions,
			eng,
			logger.WithPrefix("worker.processor"),
			cfg.Worker.IdleInterval,
			cfg.Worker.ErrorInterval,
		)
		p.Start(ctx)
		processors = append(processors, p)
	}

	// Initialize API server
	handlers := api.NewHandlers(workflows, executions, logger.WithPrefix("api"))
	server := api.NewServer(handlers, cfg.API)

	go func() {
		logger.Info("Starting server", map[string]interface{}{
			"address": cfg.API.ListenAddress,
			"workers": cfg.Worker.Count,
		})
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Received shutdown signal", nil)

	// Graceful shutdown: stop claiming work, let in-flight executions
	// finish their current step, then stop the HTTP server
	for _, p := range processors {
		p.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Info("Server stopped gracefully", nil)
}
