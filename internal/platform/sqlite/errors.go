package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/llmequeue/llmequeue/internal/store"
)

// MapError maps a database error to an appropriate store error.
// It wraps the original error to preserve context for debugging.
// SQLite has no structured error codes exposed through database/sql, so
// constraint violations are recognized by their stable message prefixes.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}

	return err
}

// IsUniqueViolation checks if the given error is a SQLite unique constraint
// violation (including primary key conflicts).
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: tasks.id")
}

// IsNotFoundError checks if the given error represents a "not found" scenario.
// This handles both sql.ErrNoRows and errors that are or wrap store.ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrNotFound)
}
