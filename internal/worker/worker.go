package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/llmequeue/llmequeue/internal/api"
	"github.com/llmequeue/llmequeue/internal/config"
	"github.com/llmequeue/llmequeue/internal/domain"
)

// Worker runs the claim/execute/report loop.
type Worker struct {
	client       *Client
	backend      *OllamaClient
	models       config.ModelsConfig
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates a Worker. A non-positive pollInterval falls back to one second.
// If logger is nil, a default logger will be used.
func New(
	client *Client,
	backend *OllamaClient,
	models config.ModelsConfig,
	pollInterval time.Duration,
	logger *slog.Logger,
) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		client:       client,
		backend:      backend,
		models:       models,
		pollInterval: pollInterval,
		logger:       logger.With(slog.String("component", "worker")),
	}
}

// Run executes the worker loop until ctx is cancelled. Claim errors are
// transient (server restart, network blip): the loop logs them and retries
// after the poll interval rather than exiting.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_interval", w.pollInterval)

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		task, err := w.client.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopped")
				return nil
			}
			w.logger.Error("failed to claim task, retrying after poll interval", "error", err)
			w.sleep(ctx)
			continue
		}

		if task == nil {
			w.sleep(ctx)
			continue
		}

		w.process(ctx, task)
	}
}

// process executes one claimed task and reports the outcome. A failed
// attempt to report failure is logged and dropped; blocking the loop on a
// report retry would starve every other queued task.
func (w *Worker) process(ctx context.Context, task *api.ClaimedTask) {
	logger := w.logger.With(
		slog.String("task_id", task.ID),
		slog.String("task_kind", task.Kind),
	)
	logger.Info("processing task")

	result, err := w.execute(ctx, task)
	if err != nil {
		logger.Error("task execution failed", "error", err)
		if failErr := w.client.Fail(ctx, task.ID, err.Error()); failErr != nil {
			logger.Error("could not report task failure", "error", failErr)
		}
		return
	}

	if err := w.client.Complete(ctx, task.ID, result); err != nil {
		logger.Error("could not report task completion", "error", err)
		return
	}

	logger.Info("task completed")
}

// execute dispatches a task to the backend call matching its kind and
// returns the result blob to store.
func (w *Worker) execute(ctx context.Context, task *api.ClaimedTask) (json.RawMessage, error) {
	switch task.Kind {
	case domain.TaskKindEmbedding:
		var payload api.EmbeddingPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid embedding payload: %w", err)
		}
		if payload.Model == "" {
			payload.Model = w.models.Embedding
		}

		embedding, err := w.backend.Embedding(ctx, payload.Model, payload.Text)
		if err != nil {
			return nil, err
		}
		return json.Marshal(embedding)

	case domain.TaskKindChat:
		var payload api.ChatPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid chat payload: %w", err)
		}
		if payload.Model == "" {
			payload.Model = w.models.Chat
		}

		chatResult, err := w.backend.ChatCompletion(ctx, payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(chatResult)

	default:
		return nil, fmt.Errorf("unsupported task kind: %s", task.Kind)
	}
}

// sleep waits out the poll interval, returning early on cancellation.
func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}
