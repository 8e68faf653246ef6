package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/llmequeue/llmequeue/internal/config"
	"github.com/llmequeue/llmequeue/internal/domain"
	"github.com/llmequeue/llmequeue/internal/platform/sqlite"
	"github.com/llmequeue/llmequeue/internal/queue"
)

// testEnv bundles a migrated SQLite-backed queue and a router with all
// handlers mounted, mirroring the production route table minus auth.
type testEnv struct {
	engine *queue.Engine
	router chi.Router
}

// testQueueConfig keeps synchronous waits short so timeout paths finish
// quickly in tests.
func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		RetentionWindow: time.Hour,
		SweepInterval:   10 * time.Minute,
		PollInterval:    5 * time.Millisecond,
		EmbeddingWait:   250 * time.Millisecond,
		ChatWait:        250 * time.Millisecond,
		MaxWait:         time.Second,
	}
}

func testModels() config.ModelsConfig {
	return config.ModelsConfig{
		Embedding: "nomic-embed-text",
		Chat:      "llama3.2",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	taskStore := sqlite.NewSQLiteTaskStore(db, logger)

	engine := queue.NewEngine(taskStore, logger)
	queueCfg := testQueueConfig()
	waiter := queue.NewWaiter(engine, queueCfg.PollInterval, logger)

	openaiHandler := NewOpenAIHandler(engine, waiter, queueCfg, testModels(), logger)
	taskHandler := NewTaskHandler(engine, logger)
	workerHandler := NewWorkerHandler(engine, logger)

	r := chi.NewRouter()
	r.Post("/v1/embeddings", openaiHandler.CreateEmbedding)
	r.Post("/v1/chat/completions", openaiHandler.CreateChatCompletion)
	r.Get("/tasks/{id}", taskHandler.GetTask)
	r.Get("/tasks/{id}/result", taskHandler.GetTaskResult)
	r.Post("/worker/next", workerHandler.ClaimNext)
	r.Post("/worker/complete/{id}", workerHandler.Complete)
	r.Post("/worker/fail/{id}", workerHandler.Fail)

	return &testEnv{engine: engine, router: r}
}

// do executes a request against the router and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// completeNext runs a fake worker in the background: it polls until a task
// becomes claimable, then records the given result.
func (env *testEnv) completeNext(t *testing.T, result json.RawMessage) {
	t.Helper()

	go func() {
		ctx := context.Background()
		task := env.claimWithRetry(ctx)
		if task == nil {
			return
		}
		_, _ = env.engine.Complete(ctx, task.ID, result)
	}()
}

// failNext is the failure counterpart of completeNext.
func (env *testEnv) failNext(t *testing.T, errorMsg string) {
	t.Helper()

	go func() {
		ctx := context.Background()
		task := env.claimWithRetry(ctx)
		if task == nil {
			return
		}
		_, _ = env.engine.Fail(ctx, task.ID, errorMsg)
	}()
}

// claimWithRetry polls the engine until a task becomes claimable or a
// deadline passes. Returns nil if nothing showed up.
func (env *testEnv) claimWithRetry(ctx context.Context) *domain.Task {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := env.engine.ClaimNext(ctx)
		if err == nil && task != nil {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// decodeJSON unmarshals a recorded response body.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}
