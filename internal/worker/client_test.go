package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmequeue/llmequeue/internal/api"
)

const testToken = "worker-test-token"

func TestClient_ClaimNext(t *testing.T) {
	t.Parallel()

	t.Run("no work available", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/worker/next", r.URL.Path)
			assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"task":null}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, testToken, time.Second)
		task, err := client.ClaimNext(context.Background())
		require.NoError(t, err)
		assert.Nil(t, task)
	})

	t.Run("task available", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"task":{"id":"0c9cdc8c-6f4a-4f04-9b1d-3a1f6f3ccf77","kind":"embedding","payload":{"text":"hi"}}}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, testToken, time.Second)
		task, err := client.ClaimNext(context.Background())
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, "0c9cdc8c-6f4a-4f04-9b1d-3a1f6f3ccf77", task.ID)
		assert.Equal(t, "embedding", task.Kind)
		assert.JSONEq(t, `{"text":"hi"}`, string(task.Payload))
	})

	t.Run("server error carries body message", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Failed to claim task"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, testToken, time.Second)
		_, err := client.ClaimNext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Failed to claim task")
	})
}

func TestClient_Complete(t *testing.T) {
	t.Parallel()

	const taskID = "0c9cdc8c-6f4a-4f04-9b1d-3a1f6f3ccf77"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/worker/complete/"+taskID, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.WorkerCompleteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `[0.1,0.2]`, string(req.Result))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testToken, time.Second)
	err := client.Complete(context.Background(), taskID, json.RawMessage(`[0.1,0.2]`))
	assert.NoError(t, err)
}

func TestClient_Fail(t *testing.T) {
	t.Parallel()

	const taskID = "0c9cdc8c-6f4a-4f04-9b1d-3a1f6f3ccf77"

	t.Run("reports error message", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/worker/fail/"+taskID, r.URL.Path)

			var req api.WorkerFailRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "model crashed", req.Error)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"failed"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, testToken, time.Second)
		err := client.Fail(context.Background(), taskID, "model crashed")
		assert.NoError(t, err)
	})

	t.Run("stale report surfaces as error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Task not found or not in processing state"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, testToken, time.Second)
		err := client.Fail(context.Background(), taskID, "late report")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in processing state")
	})
}

func TestClient_ContextCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, testToken, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.ClaimNext(ctx)
	assert.Error(t, err)
}
