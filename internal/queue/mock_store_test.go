package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llmequeue/llmequeue/internal/domain"
	"github.com/llmequeue/llmequeue/internal/store"
)

// memTaskStore is an in-memory TaskStore for tests. All operations are
// guarded by one mutex, so the conditional updates have the same
// at-most-once semantics as the SQL implementations. Hook functions let
// individual tests inject failures or observe calls.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	// getErr, when set, makes every GetByID fail. Lets tests exercise
	// poll-retry behavior.
	getErr error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

var _ store.TaskStore = (*memTaskStore)(nil)

func (m *memTaskStore) Insert(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[task.ID]; exists {
		return store.ErrDuplicateTaskID
	}

	clone := *task
	m.tasks[task.ID] = &clone
	return nil
}

func (m *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	clone := *task
	return &clone, nil
}

func (m *memTaskStore) OldestPending(_ context.Context) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *domain.Task
	for _, task := range m.tasks {
		if task.Status != domain.TaskStatusPending {
			continue
		}
		if oldest == nil || task.CreatedAt.Before(oldest.CreatedAt) ||
			(task.CreatedAt.Equal(oldest.CreatedAt) && task.ID.String() < oldest.ID.String()) {
			oldest = task
		}
	}

	if oldest == nil {
		return nil, store.ErrTaskNotFound
	}

	clone := *oldest
	return &clone, nil
}

func (m *memTaskStore) MarkProcessing(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return m.transition(id, domain.TaskStatusPending, func(task *domain.Task) {
		task.Status = domain.TaskStatusProcessing
		task.UpdatedAt = now
	})
}

func (m *memTaskStore) MarkCompleted(_ context.Context, id uuid.UUID, result json.RawMessage, now time.Time) (bool, error) {
	return m.transition(id, domain.TaskStatusProcessing, func(task *domain.Task) {
		task.Status = domain.TaskStatusCompleted
		task.Result = result
		task.UpdatedAt = now
	})
}

func (m *memTaskStore) MarkFailed(_ context.Context, id uuid.UUID, errorMsg string, now time.Time) (bool, error) {
	return m.transition(id, domain.TaskStatusProcessing, func(task *domain.Task) {
		task.Status = domain.TaskStatusFailed
		task.Error = errorMsg
		task.UpdatedAt = now
	})
}

func (m *memTaskStore) DeleteByID(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return false, nil
	}
	delete(m.tasks, id)
	return true, nil
}

func (m *memTaskStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, task := range m.tasks {
		if task.CreatedAt.Before(cutoff) {
			delete(m.tasks, id)
			deleted++
		}
	}

	return deleted, nil
}

// transition applies fn when the task exists and is in the expected status.
func (m *memTaskStore) transition(id uuid.UUID, expected domain.TaskStatus, fn func(*domain.Task)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.Status != expected {
		return false, nil
	}

	fn(task)
	return true, nil
}

// setStatus force-sets a task's status, bypassing transition rules. For
// test setup only.
func (m *memTaskStore) setStatus(id uuid.UUID, status domain.TaskStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[id]; ok {
		task.Status = status
	}
}

// setGetErr installs or clears the injected GetByID failure.
func (m *memTaskStore) setGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// count reports the number of stored tasks.
func (m *memTaskStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
