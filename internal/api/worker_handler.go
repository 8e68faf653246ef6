package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/llmequeue/llmequeue/internal/api/shared"
	"github.com/llmequeue/llmequeue/internal/queue"
)

// WorkerHandler serves the worker-facing claim and report endpoints.
type WorkerHandler struct {
	engine    *queue.Engine
	validator *validator.Validate
	logger    *slog.Logger
}

// NewWorkerHandler creates a new WorkerHandler.
func NewWorkerHandler(engine *queue.Engine, logger *slog.Logger) *WorkerHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerHandler{
		engine:    engine,
		validator: validator.New(),
		logger:    logger,
	}
}

// ClaimNext handles POST /worker/next requests. The response carries either
// the claimed task or a null task when no work is available; idling workers
// sleep client-side, the server never long-polls here.
func (h *WorkerHandler) ClaimNext(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.ClaimNext(r.Context())
	if err != nil {
		h.logger.Error("failed to claim task", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to claim task")
		return
	}

	if task == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, ClaimResponse{Task: nil})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ClaimResponse{
		Task: &ClaimedTask{
			ID:      task.ID.String(),
			Kind:    task.Kind,
			Payload: task.Payload,
		},
	})
}

// Complete handles POST /worker/complete/{id} requests.
// A report that does not apply (task unknown, not yet claimed, or already
// finalized) is a client-visible 400, not a server error.
func (h *WorkerHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	var req WorkerCompleteRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing 'result' field")
		return
	}

	applied, err := h.engine.Complete(r.Context(), id, req.Result)
	if err != nil {
		h.logger.Error("failed to complete task", "task_id", id, "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to complete task")
		return
	}

	if !applied {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task not found or not in processing state")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, WorkerStatusResponse{Status: "completed"})
}

// Fail handles POST /worker/fail/{id} requests, symmetric to Complete.
func (h *WorkerHandler) Fail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	var req WorkerFailRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing 'error' field")
		return
	}

	applied, err := h.engine.Fail(r.Context(), id, req.Error)
	if err != nil {
		h.logger.Error("failed to fail task", "task_id", id, "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to fail task")
		return
	}

	if !applied {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task not found or not in processing state")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, WorkerStatusResponse{Status: "failed"})
}

// taskID parses the {id} route parameter, writing a 400 on malformed input.
func (h *WorkerHandler) taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
