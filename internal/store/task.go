package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/llmequeue/llmequeue/internal/domain"
)

// TaskStore defines the interface for durable task persistence.
//
// The Mark* methods are the store's conditional-update primitive: each one
// applies its transition only if the stored record currently holds the
// expected status, as a single atomic statement with respect to concurrent
// callers. All mutual exclusion in the queue rests on that guarantee; no
// caller may ever read a task and write it back unconditionally.
// Version: 1.0
type TaskStore interface {
	// Insert persists a new task record.
	// Returns ErrDuplicateTaskID if a task with the same id already exists.
	Insert(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist. No side effects.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// OldestPending returns the oldest task in pending status, ordered by
	// creation time with ties broken by id. Returns ErrTaskNotFound when no
	// pending task exists. Selection alone confers no ownership; callers
	// must win MarkProcessing before touching the task.
	OldestPending(ctx context.Context) (*domain.Task, error)

	// MarkProcessing transitions a task from pending to processing.
	// Reports whether the update applied; false means another caller won
	// the race or the task no longer exists.
	MarkProcessing(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// MarkCompleted transitions a task from processing to completed and
	// records its result. Reports whether the update applied.
	MarkCompleted(ctx context.Context, id uuid.UUID, result json.RawMessage, now time.Time) (bool, error)

	// MarkFailed transitions a task from processing to failed and records
	// the error message. Reports whether the update applied.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string, now time.Time) (bool, error)

	// DeleteByID removes a task record. Idempotent: reports whether a row
	// was actually removed, and never errors on a missing id.
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)

	// DeleteCreatedBefore bulk-deletes tasks created before the cutoff,
	// regardless of status. Returns the number of rows removed.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
