package sqlite

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

// timeLayout is the storage format for timestamps. It is fixed-width UTC so
// that lexicographic comparison in SQL (the created_at < ? in
// DeleteCreatedBefore, the ORDER BY in OldestPending) matches chronological
// order. RFC 3339 with variable fraction lengths would not sort correctly.
const timeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteTaskStore implements the store.TaskStore interface
// using a SQLite database as the storage backend.
type SQLiteTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLiteTaskStore creates a new SQLite implementation of the TaskStore
// interface. It accepts a database connection or transaction that should be
// initialized and managed by the caller. If logger is nil, a default logger
// will be used.
func NewSQLiteTaskStore(db store.DBTX, logger *slog.Logger) *SQLiteTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure SQLiteTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*SQLiteTaskStore)(nil)

// Insert implements store.TaskStore.Insert
func (s *SQLiteTaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, kind, payload, status, result, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID.String(),
		task.Kind,
		string(task.Payload),
		string(task.Status),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
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
func (s *SQLiteTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, kind, payload, status, result, error, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id.String()))
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
func (s *SQLiteTaskStore) OldestPending(ctx context.Context) (*domain.Task, error) {
	query := `
		SELECT id, kind, payload, status, result, error, created_at, updated_at
		FROM tasks
		WHERE status = ?
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
func (s *SQLiteTaskStore) MarkProcessing(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.conditionalUpdate(ctx, "claim", id, query,
		string(domain.TaskStatusProcessing),
		formatTime(now),
		id.String(),
		string(domain.TaskStatusPending),
	)
}

// MarkCompleted implements store.TaskStore.MarkCompleted
func (s *SQLiteTaskStore) MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, result = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.conditionalUpdate(ctx, "complete", id, query,
		string(domain.TaskStatusCompleted),
		string(result),
		formatTime(now),
		id.String(),
		string(domain.TaskStatusProcessing),
	)
}

// MarkFailed implements store.TaskStore.MarkFailed
func (s *SQLiteTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string, now time.Time) (bool, error) {
	query := `
		UPDATE tasks
		SET status = ?, error = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	return s.conditionalUpdate(ctx, "fail", id, query,
		string(domain.TaskStatusFailed),
		errorMsg,
		formatTime(now),
		id.String(),
		string(domain.TaskStatusProcessing),
	)
}

// DeleteByID implements store.TaskStore.DeleteByID
func (s *SQLiteTaskStore) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
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
func (s *SQLiteTaskStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE created_at < ?`,
		formatTime(cutoff),
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
func (s *SQLiteTaskStore) conditionalUpdate(
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
		idStr     string
		kind      string
		payload   string
		status    string
		result    sql.NullString
		errorMsg  sql.NullString
		createdAt string
		updatedAt string
	)

	if err := row.Scan(&idStr, &kind, &payload, &status, &result, &errorMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid task id %q in database: %w", idStr, err)
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for task %s: %w", idStr, err)
	}

	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at for task %s: %w", idStr, err)
	}

	task := &domain.Task{
		ID:        id,
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		Status:    domain.TaskStatus(status),
		Error:     errorMsg.String,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	if result.Valid {
		task.Result = json.RawMessage(result.String)
	}

	return task, nil
}

// formatTime normalizes a timestamp to the fixed-width UTC storage format.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime is the inverse of formatTime.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
