package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/llmequeue/llmequeue/internal/domain"
	"github.com/llmequeue/llmequeue/internal/store"
)

// Engine exposes the task lifecycle operations over a TaskStore.
type Engine struct {
	store  store.TaskStore
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a new Engine backed by the given store.
// If logger is nil, a default logger will be used.
func NewEngine(taskStore store.TaskStore, logger *slog.Logger) *Engine {
	if taskStore == nil {
		panic("taskStore cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:  taskStore,
		logger: logger.With(slog.String("component", "queue_engine")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit creates a new pending task of the given kind and returns its id.
// The payload is stored opaquely; the engine never inspects it.
func (e *Engine) Submit(ctx context.Context, kind string, payload json.RawMessage) (uuid.UUID, error) {
	task, err := domain.NewTask(kind, payload)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.store.Insert(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("failed to submit task: %w", err)
	}

	e.logger.Debug("task submitted", "task_id", task.ID, "task_kind", kind)
	return task.ID, nil
}

// ClaimNext atomically claims the oldest pending task and returns it with
// status processing. Returns (nil, nil) when no work is available; absence
// of work is a normal, immediate return, never an error.
//
// Selection and claim are separate steps, so a concurrent caller can take
// the selected task first. When the conditional update reports that the
// race was lost, the claim loop re-selects instead of returning a false
// claim: at most one caller ever observes a successful transition out of
// pending for a given task.
func (e *Engine) ClaimNext(ctx context.Context) (*domain.Task, error) {
	for {
		task, err := e.store.OldestPending(ctx)
		if err != nil {
			if store.IsNotFoundError(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to select pending task: %w", err)
		}

		now := e.now()
		claimed, err := e.store.MarkProcessing(ctx, task.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to claim task: %w", err)
		}

		if !claimed {
			e.logger.Debug("lost claim race, retrying selection", "task_id", task.ID)
			continue
		}

		task.Status = domain.TaskStatusProcessing
		task.UpdatedAt = now

		e.logger.Debug("task claimed", "task_id", task.ID, "task_kind", task.Kind)
		return task, nil
	}
}

// Complete records a successful result for a task in processing status.
// Reports whether the transition applied; false means the task was not
// found or not in processing (a stale or duplicate completion report),
// which callers log and move on from.
func (e *Engine) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) (bool, error) {
	applied, err := e.store.MarkCompleted(ctx, id, result, e.now())
	if err != nil {
		return false, fmt.Errorf("failed to complete task: %w", err)
	}

	if !applied {
		e.logger.Warn("stale or duplicate completion report", "task_id", id)
	}
	return applied, nil
}

// Fail records a failure message for a task in processing status.
// Semantics mirror Complete.
func (e *Engine) Fail(ctx context.Context, id uuid.UUID, errorMsg string) (bool, error) {
	applied, err := e.store.MarkFailed(ctx, id, errorMsg, e.now())
	if err != nil {
		return false, fmt.Errorf("failed to fail task: %w", err)
	}

	if !applied {
		e.logger.Warn("stale or duplicate failure report", "task_id", id)
	}
	return applied, nil
}

// Get returns the current task record.
// Returns store.ErrTaskNotFound if the task does not exist.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return e.store.GetByID(ctx, id)
}

// Delete removes a task record, typically after its terminal state has been
// consumed. Idempotent: reports whether a record was removed.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return e.store.DeleteByID(ctx, id)
}
