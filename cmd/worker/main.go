// Package main implements the entry point for the llmequeue inference
// worker. The worker claims tasks from the queue server over HTTP, executes
// them against a local Ollama backend, and reports the outcome.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/llmequeue/llmequeue/internal/config"
	"github.com/llmequeue/llmequeue/internal/platform/logger"
	"github.com/llmequeue/llmequeue/internal/worker"
)

// main loads configuration, builds the queue and backend clients, and runs
// the worker loop until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	slog.Info("Worker configuration loaded",
		"server_url", cfg.Worker.ServerURL,
		"ollama_url", cfg.Worker.OllamaURL,
		"poll_interval", cfg.Worker.PollInterval)

	client := worker.NewClient(cfg.Worker.ServerURL, cfg.Auth.Token, cfg.Worker.RequestTimeout)
	backend := worker.NewOllamaClient(cfg.Worker.OllamaURL)

	w := worker.New(client, backend, cfg.Models, cfg.Worker.PollInterval, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		log.Fatalf("Worker error: %v", err)
	}
}
