package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a queued task.
type TaskStatus string

// Possible task status values. A task only ever moves
// pending -> processing -> completed | failed.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task kind constants. The queue never interprets the kind; it only routes
// the task to the matching worker-side handler.
const (
	TaskKindEmbedding = "embedding"
	TaskKindChat      = "chat"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptyTaskKind     = errors.New("task kind cannot be empty")
	ErrEmptyTaskPayload  = errors.New("task payload cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// Task represents one unit of queued inference work. Payload and Result are
// opaque JSON blobs; only the worker-side dispatch layer deserializes them.
type Task struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewTask creates a new pending Task with the given kind and payload.
// It generates a new UUID for the task ID and sets both timestamps to now.
// Returns an error if validation fails.
func NewTask(kind string, payload json.RawMessage) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   payload,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Kind == "" {
		return ErrEmptyTaskKind
	}

	if len(t.Payload) == 0 {
		return ErrEmptyTaskPayload
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// IsTerminal reports whether the task has reached a final state.
// Terminal tasks never transition again.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
