package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/llmequeue/llmequeue/internal/api/shared"
	"github.com/llmequeue/llmequeue/internal/config"
	"github.com/llmequeue/llmequeue/internal/domain"
	"github.com/llmequeue/llmequeue/internal/queue"
)

// OpenAIHandler serves the OpenAI-compatible client endpoints. Each request
// becomes a queued task; the handler then waits synchronously up to a
// kind-specific budget and falls back to returning the task id for polling.
type OpenAIHandler struct {
	engine    *queue.Engine
	waiter    *queue.Waiter
	queueCfg  config.QueueConfig
	models    config.ModelsConfig
	validator *validator.Validate
	logger    *slog.Logger
}

// NewOpenAIHandler creates a new OpenAIHandler.
func NewOpenAIHandler(
	engine *queue.Engine,
	waiter *queue.Waiter,
	queueCfg config.QueueConfig,
	models config.ModelsConfig,
	logger *slog.Logger,
) *OpenAIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIHandler{
		engine:    engine,
		waiter:    waiter,
		queueCfg:  queueCfg,
		models:    models,
		validator: validator.New(),
		logger:    logger,
	}
}

// CreateEmbedding handles POST /v1/embeddings requests.
//
// The input text is queued as an "embedding" task and awaited for up to the
// embedding wait budget. On completion the stored vector is returned in the
// OpenAI list shape; on failure the stored error surfaces verbatim as a 500;
// on timeout the caller receives 202 with the task id for later polling.
func (h *OpenAIHandler) CreateEmbedding(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	model := req.Model
	if model == "" {
		model = h.models.Embedding
	}

	payload, err := json.Marshal(EmbeddingPayload{Text: req.Input, Model: model})
	if err != nil {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to encode task payload")
		return
	}

	taskID, err := h.engine.Submit(r.Context(), domain.TaskKindEmbedding, payload)
	if err != nil {
		h.logger.Error("failed to submit embedding task", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to submit task")
		return
	}

	maxWait, ok := h.waitBudget(w, r, h.queueCfg.EmbeddingWait)
	if !ok {
		return
	}

	result, err := h.waiter.Await(r.Context(), taskID, maxWait)
	if err != nil {
		h.respondWaitError(w, r, taskID, err)
		return
	}

	switch result.Outcome {
	case queue.WaitCompleted:
		var embedding []float64
		if err := json.Unmarshal(result.Result, &embedding); err != nil {
			h.logger.Error("malformed embedding result",
				"task_id", taskID,
				"error", err)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Malformed task result")
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, EmbeddingResponse{
			Object: "list",
			Data: []EmbeddingData{
				{Object: "embedding", Embedding: embedding, Index: 0},
			},
			Model: model,
		})
	case queue.WaitFailed:
		shared.RespondWithError(w, r, http.StatusInternalServerError, failureMessage(result.ErrorMessage))
	case queue.WaitTimedOut:
		shared.RespondWithJSON(w, r, http.StatusAccepted, PendingTaskResponse{ID: taskID.String()})
	}
}

// CreateChatCompletion handles POST /v1/chat/completions requests.
// Semantics mirror CreateEmbedding with the chat wait budget; streaming is
// not supported and is rejected up front.
func (h *OpenAIHandler) CreateChatCompletion(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if req.Stream {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Streaming not supported")
		return
	}

	model := req.Model
	if model == "" {
		model = h.models.Chat
	}

	payload, err := json.Marshal(ChatPayload{
		Messages:    req.Messages,
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to encode task payload")
		return
	}

	taskID, err := h.engine.Submit(r.Context(), domain.TaskKindChat, payload)
	if err != nil {
		h.logger.Error("failed to submit chat task", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to submit task")
		return
	}

	maxWait, ok := h.waitBudget(w, r, h.queueCfg.ChatWait)
	if !ok {
		return
	}

	result, err := h.waiter.Await(r.Context(), taskID, maxWait)
	if err != nil {
		h.respondWaitError(w, r, taskID, err)
		return
	}

	switch result.Outcome {
	case queue.WaitCompleted:
		var chatResult ChatResult
		if err := json.Unmarshal(result.Result, &chatResult); err != nil {
			h.logger.Error("malformed chat result",
				"task_id", taskID,
				"error", err)
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Malformed task result")
			return
		}
		finishReason := chatResult.FinishReason
		if finishReason == "" {
			finishReason = "stop"
		}
		shared.RespondWithJSON(w, r, http.StatusOK, ChatCompletionResponse{
			ID:      taskID.String(),
			Object:  "chat.completion",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []ChatChoice{
				{
					Index:        0,
					Message:      ChatMessage{Role: "assistant", Content: chatResult.Content},
					FinishReason: finishReason,
				},
			},
		})
	case queue.WaitFailed:
		shared.RespondWithError(w, r, http.StatusInternalServerError, failureMessage(result.ErrorMessage))
	case queue.WaitTimedOut:
		shared.RespondWithJSON(w, r, http.StatusAccepted, PendingTaskResponse{ID: taskID.String()})
	}
}

// waitBudget resolves the synchronous wait budget for a request: the
// kind-specific default, overridable via the "wait" query parameter
// (seconds) and clamped to the configured hard ceiling. Writes a 400 and
// reports false on an unparseable override.
func (h *OpenAIHandler) waitBudget(w http.ResponseWriter, r *http.Request, def time.Duration) (time.Duration, bool) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return def, true
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid wait parameter")
		return 0, false
	}

	wait := time.Duration(seconds) * time.Second
	if wait > h.queueCfg.MaxWait {
		wait = h.queueCfg.MaxWait
	}
	return wait, true
}

// respondWaitError maps wait adapter errors. A cancelled context means the
// client disconnected; the wait is abandoned, the task is not.
func (h *OpenAIHandler) respondWaitError(w http.ResponseWriter, r *http.Request, taskID fmt.Stringer, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.logger.Debug("caller abandoned synchronous wait",
			"task_id", taskID.String(),
			"error", err)
		return
	}

	h.logger.Error("synchronous wait failed",
		"task_id", taskID.String(),
		"error", err)
	shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to await task")
}

// failureMessage surfaces the stored task error verbatim, substituting a
// placeholder for the (invalid) empty case.
func failureMessage(stored string) string {
	if stored == "" {
		return "Unknown error"
	}
	return stored
}
