package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmequeue/llmequeue/internal/api/shared"
	"github.com/llmequeue/llmequeue/internal/domain"
)

func TestCreateEmbedding_CompletedWithinWait(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.completeNext(t, json.RawMessage(`[0.1,0.2,0.3]`))

	rec := env.do(t, http.MethodPost, "/v1/embeddings", EmbeddingRequest{
		Input: "hello world",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp EmbeddingResponse
	decodeJSON(t, rec, &resp)

	assert.Equal(t, "list", resp.Object)
	assert.Equal(t, "nomic-embed-text", resp.Model)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "embedding", resp.Data[0].Object)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, resp.Data[0].Embedding)
	assert.Zero(t, resp.Data[0].Index)
}

func TestCreateEmbedding_ExplicitModel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.completeNext(t, json.RawMessage(`[1]`))

	rec := env.do(t, http.MethodPost, "/v1/embeddings", EmbeddingRequest{
		Input: "hello",
		Model: "custom-embedder",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp EmbeddingResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "custom-embedder", resp.Model)
}

func TestCreateEmbedding_TimeoutReturnsPendingTask(t *testing.T) {
	t.Parallel()

	// No worker running: the wait budget expires.
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/embeddings", EmbeddingRequest{
		Input: "nobody is listening",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp PendingTaskResponse
	decodeJSON(t, rec, &resp)

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	// The task survives the timed-out wait and is still claimable.
	task, err := env.engine.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
}

func TestCreateEmbedding_FailureSurfacesStoredError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.failNext(t, "model not found: nomic-embed-text")

	rec := env.do(t, http.MethodPost, "/v1/embeddings", EmbeddingRequest{
		Input: "hello",
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp shared.ErrorResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "model not found: nomic-embed-text", resp.Error)
}

func TestCreateEmbedding_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	t.Run("missing input", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/embeddings", EmbeddingRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/embeddings", "not an object")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid wait parameter", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/embeddings?wait=abc", EmbeddingRequest{
			Input: "hello",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative wait parameter", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/embeddings?wait=-5", EmbeddingRequest{
			Input: "hello",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateChatCompletion_CompletedWithinWait(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	result, err := json.Marshal(ChatResult{
		Content:      "Hello! How can I help?",
		FinishReason: "stop",
	})
	require.NoError(t, err)
	env.completeNext(t, result)

	rec := env.do(t, http.MethodPost, "/v1/chat/completions", ChatCompletionRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: "Hi"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatCompletionResponse
	decodeJSON(t, rec, &resp)

	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "llama3.2", resp.Model)
	assert.NotZero(t, resp.Created)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "Hello! How can I help?", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestCreateChatCompletion_StreamingRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/chat/completions", ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Hi"}},
		Stream:   true,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp shared.ErrorResponse
	decodeJSON(t, rec, &resp)
	assert.Contains(t, resp.Error, "Streaming not supported")
}

func TestCreateChatCompletion_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	t.Run("no messages", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/chat/completions", ChatCompletionRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid role", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/chat/completions", ChatCompletionRequest{
			Messages: []ChatMessage{{Role: "robot", Content: "Hi"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateChatCompletion_TimeoutReturnsPendingTask(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/chat/completions?wait=1", ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "user", Content: "Hi"}},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp PendingTaskResponse
	decodeJSON(t, rec, &resp)
	_, err := uuid.Parse(resp.ID)
	assert.NoError(t, err)
}
