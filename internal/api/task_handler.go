package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/llmequeue/llmequeue/internal/api/shared"
	"github.com/llmequeue/llmequeue/internal/domain"
	"github.com/llmequeue/llmequeue/internal/queue"
	"github.com/llmequeue/llmequeue/internal/store"
)

// TaskHandler serves the out-of-band task polling endpoints used after a
// synchronous wait has timed out.
type TaskHandler struct {
	engine *queue.Engine
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(engine *queue.Engine, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskHandler{
		engine: engine,
		logger: logger,
	}
}

// GetTask handles GET /tasks/{id} requests, returning the full task record.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	task, err := h.engine.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		h.logger.Error("failed to get task", "task_id", id, "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to get task")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// GetTaskResult handles GET /tasks/{id}/result requests, returning only the
// result of a completed task.
func (h *TaskHandler) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	task, err := h.engine.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		h.logger.Error("failed to get task", "task_id", id, "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to get task")
		return
	}

	if task.Status != domain.TaskStatusCompleted {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Task is not completed (status: %s)", task.Status))
		return
	}

	if len(task.Result) == 0 {
		h.logger.Error("completed task has no result", "task_id", id)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Task completed but no result found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResultResponse{
		ID:     task.ID.String(),
		Result: task.Result,
	})
}

// taskID parses the {id} route parameter, writing a 400 on malformed input.
func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(task *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:        task.ID.String(),
		Kind:      task.Kind,
		Status:    string(task.Status),
		Result:    task.Result,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if task.Error != "" {
		errMsg := task.Error
		resp.Error = &errMsg
	}
	return resp
}
