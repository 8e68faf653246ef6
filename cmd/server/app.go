package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/llmequeue/llmequeue/internal/config"
	"github.com/llmequeue/llmequeue/internal/queue"
	"github.com/llmequeue/llmequeue/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore

	engine  *queue.Engine
	waiter  *queue.Waiter
	sweeper *queue.Sweeper
}

// newApplication creates a new application instance with all dependencies
// initialized: database connection, task store, queue engine, wait adapter
// and retention sweeper. The sweeper is started here and stopped in cleanup.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.db, app.taskStore, err = setupAppDatabase(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	app.engine = queue.NewEngine(app.taskStore, logger)
	app.waiter = queue.NewWaiter(app.engine, cfg.Queue.PollInterval, logger)

	app.sweeper = queue.NewSweeper(app.taskStore, queue.SweeperConfig{
		Interval:  cfg.Queue.SweepInterval,
		Retention: cfg.Queue.RetentionWindow,
	}, logger)
	app.sweeper.Start()

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
