package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/llmequeue/llmequeue/internal/domain"
	"github.com/llmequeue/llmequeue/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Insert implements store.TaskStore.Insert
func (s *PostgresTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, kind, payload, status, result, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, NULL, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Kind,
		[]byte(task.Payload),
		string(task.Status),
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
	)
	if err != nil {
		s.logger.Error("failed to insert task",
			"task_id", task.ID,
			"task_kind", task.Kind,
			"error", err)
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrDuplicateTaskID, err)
		}
		return store.NewStoreError("task", "insert", "exec failed", MapError(err))
	}

	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, kind, payload, status, result, error, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		s.logger.Error("failed to get task", "task_id", id, "error", err)
		return nil, store.NewStoreError("task", "get", "query failed", MapError(err))
	}

	return task, nil
}

// OldestPending implements store.TaskStore.OldestPending
func (s *PostgresTaskStore) OldestPending(ctx context.Context) (*domain.Task, error) {
	query := `
		SELECT id, kind, payload, status, result, error, created_at, updated_at
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, string(domain.TaskStatusPending)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		s.logger.Error("failed to select oldest pending task", "error", err)
		return nil, store.NewStoreError("task", "select", "query failed", MapError(err))
	}

	return task, nil
}

// MarkProcessing implements store.TaskStore.MarkProcessing
func (s *PostgresTaskStore) MarkProcessing(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	return s.conditionalUpdate(ctx, "claim", id, query,
		string(domain.TaskStatusProcessing),
		now.UTC(),
		id,
		string(domain.TaskStatusPending),
	)
}

// MarkCompleted implements store.TaskStore.MarkCompleted
func (s *PostgresTaskStore) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = $1, result = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	return s.conditionalUpdate(ctx, "complete", id, query,
		string(domain.TaskStatusCompleted),
		[]byte(result),
		now.UTC(),
		id,
		string(domain.TaskStatusProcessing),
	)
}

// MarkFailed implements store.TaskStore.MarkFailed
func (s *PostgresTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = $1, error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	return s.conditionalUpdate(ctx, "fail", id, query,
		string(domain.TaskStatusFailed),
		errorMsg,
		now.UTC(),
		id,
		string(domain.TaskStatusProcessing),
	)
}

// DeleteByID implements store.TaskStore.DeleteByID
func (s *PostgresTaskStore) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("failed to delete task", "task_id", id, "error", err)
		return false, store.NewStoreError("task", "delete", "exec failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteCreatedBefore implements store.TaskStore.DeleteCreatedBefore
func (s *PostgresTaskStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE created_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		s.logger.Error("failed to delete expired tasks", "cutoff", cutoff, "error", err)
		return 0, store.NewStoreError("task", "purge", "exec failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// conditionalUpdate executes a status-guarded UPDATE and reports whether it
// applied. Zero rows affected means the guard did not match (another caller
// already transitioned the task, or it was deleted); that is an expected
// outcome, not an error.
func (s *PostgresTaskStore) conditionalUpdate(
	ctx context.Context,
	operation string,
	id uuid.UUID,
	query string,
	args ...any,
) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("conditional update failed",
			"operation", operation,
			"task_id", id,
			"error", err)
		return false, store.NewStoreError("task", operation, "conditional update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one tasks row onto a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		id        uuid.UUID
		kind      string
		payload   []byte
		status    string
		result    []byte
		errorMsg  sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(&id, &kind, &payload, &status, &result, &errorMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:        id,
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		Status:    domain.TaskStatus(status),
		Error:     errorMsg.String,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
	if len(result) > 0 {
		task.Result = json.RawMessage(result)
	}

	return task, nil
}
