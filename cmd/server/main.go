// Package main implements the entry point for the llmequeue server, the
// durable single-node work queue fronting local AI inference with an
// OpenAI-compatible API.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/llmequeue/llmequeue/internal/config"
	"github.com/llmequeue/llmequeue/internal/platform/logger"
)

// main initializes configuration, logging, the database and the queue
// services, then runs the HTTP server until a shutdown signal arrives.
func main() {
	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx := context.Background()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration and sets up structured logging.
// Returns the loaded config, the root logger, and any initialization error.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver)

	return cfg, appLogger, nil
}
