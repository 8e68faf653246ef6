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

// DefaultPollInterval is the fixed sleep between polls of a waited-on task.
// Wait budgets are short, so predictability matters more than load-shedding;
// there is deliberately no backoff.
const DefaultPollInterval = 200 * time.Millisecond

// WaitOutcome classifies how a bounded wait ended.
type WaitOutcome string

// Possible wait outcomes.
const (
	WaitCompleted WaitOutcome = "completed"
	WaitFailed    WaitOutcome = "failed"
	WaitTimedOut  WaitOutcome = "timed_out"
)

// WaitResult is the outcome of awaiting a task.
//
// On WaitCompleted, Result holds the task's result and the record has been
// deleted. On WaitFailed, ErrorMessage holds the stored failure verbatim and
// the record has been deleted. On WaitTimedOut the task is untouched and
// still live in the store; TaskID lets the caller poll for it later.
type WaitResult struct {
	Outcome      WaitOutcome
	TaskID       uuid.UUID
	Result       json.RawMessage
	ErrorMessage string
}

// Waiter bridges a one-shot synchronous caller to the asynchronous task
// lifecycle by polling the engine until a terminal state or a deadline.
type Waiter struct {
	engine       *Engine
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewWaiter creates a new Waiter polling at the given interval.
// A non-positive interval falls back to DefaultPollInterval.
// If logger is nil, a default logger will be used.
func NewWaiter(engine *Engine, pollInterval time.Duration, logger *slog.Logger) *Waiter {
	if engine == nil {
		panic("engine cannot be nil")
	}

	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Waiter{
		engine:       engine,
		pollInterval: pollInterval,
		logger:       logger.With(slog.String("component", "wait_adapter")),
	}
}

// Await polls the task until it reaches a terminal state or maxWait elapses.
//
// A terminal task is deleted before returning, so a result or error message
// is consumed exactly once through this path. Timing out has no effect on
// the task itself. A store error during a poll is logged and retried within
// the remaining budget. Cancelling ctx abandons the wait (returning
// ctx.Err()), not the underlying task.
//
// Returns store.ErrTaskNotFound if the task vanishes mid-wait (consumed by
// a concurrent caller or purged by retention).
func (w *Waiter) Await(ctx context.Context, id uuid.UUID, maxWait time.Duration) (*WaitResult, error) {
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	for {
		task, err := w.engine.Get(ctx, id)
		switch {
		case err == nil:
			if task.IsTerminal() {
				return w.consume(ctx, task)
			}
		case store.IsNotFoundError(err):
			return nil, store.ErrTaskNotFound
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			w.logger.Warn("poll failed, retrying within wait budget",
				"task_id", id,
				"error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			w.logger.Debug("wait budget exhausted, leaving task queued",
				"task_id", id,
				"max_wait", maxWait)
			return &WaitResult{Outcome: WaitTimedOut, TaskID: id}, nil
		case <-time.After(w.pollInterval):
		}
	}
}

// consume deletes a terminal task and maps it to a WaitResult. The delete is
// best effort: the outcome has already been observed, and a leftover record
// is eventually removed by the retention sweeper.
func (w *Waiter) consume(ctx context.Context, task *domain.Task) (*WaitResult, error) {
	if _, err := w.engine.Delete(ctx, task.ID); err != nil {
		w.logger.Warn("failed to delete consumed task, retention will collect it",
			"task_id", task.ID,
			"error", err)
	}

	switch task.Status {
	case domain.TaskStatusCompleted:
		return &WaitResult{
			Outcome: WaitCompleted,
			TaskID:  task.ID,
			Result:  task.Result,
		}, nil
	case domain.TaskStatusFailed:
		return &WaitResult{
			Outcome:      WaitFailed,
			TaskID:       task.ID,
			ErrorMessage: task.Error,
		}, nil
	default:
		return nil, fmt.Errorf("task %s is not terminal: %s", task.ID, task.Status)
	}
}
