package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/llmequeue/llmequeue/internal/config"
	"github.com/llmequeue/llmequeue/internal/platform/postgres"
	"github.com/llmequeue/llmequeue/internal/platform/sqlite"
	"github.com/llmequeue/llmequeue/internal/store"
)

// setupAppDatabase opens the configured database backend, applies pending
// schema migrations, and returns the connection together with the matching
// task store implementation.
func setupAppDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, store.TaskStore, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err = sqlite.Open(cfg.Database.URL)
	case "postgres":
		db, err = postgres.Open(cfg.Database.URL)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool with reasonable defaults
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var taskStore store.TaskStore
	switch cfg.Database.Driver {
	case "sqlite":
		if err := sqlite.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		taskStore = sqlite.NewSQLiteTaskStore(db, logger)
	case "postgres":
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		taskStore = postgres.NewPostgresTaskStore(db, logger)
	}

	logger.Info("Database connection established", "driver", cfg.Database.Driver)
	return db, taskStore, nil
}
