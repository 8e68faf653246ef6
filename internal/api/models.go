package api

import (
	"encoding/json"
	"time"
)

// Embedding models

// EmbeddingRequest is the OpenAI-compatible embeddings request body.
type EmbeddingRequest struct {
	Input string `json:"input"           validate:"required,min=1"`
	Model string `json:"model,omitempty"`
}

// EmbeddingData is one embedding vector in an EmbeddingResponse.
type EmbeddingData struct {
	Object    string    `json:"object"` // always "embedding"
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingResponse is the OpenAI-compatible embeddings response body.
type EmbeddingResponse struct {
	Object string          `json:"object"` // always "list"
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
}

// Chat completion models

// ChatMessage is a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"    validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatCompletionRequest is the OpenAI-compatible chat completion request body.
type ChatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"              validate:"required,min=1,dive"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatChoice is one completion choice in a ChatCompletionResponse.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage reports token accounting. The backend does not expose counts,
// so the fields stay zero; the object is present for client compatibility.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the OpenAI-compatible chat completion response body.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"` // always "chat.completion"
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// Task payloads. These are the blobs the queue carries opaquely between the
// submitting handler and the worker-side dispatch.

// EmbeddingPayload is the stored payload of an embedding task.
type EmbeddingPayload struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// ChatPayload is the stored payload of a chat task.
type ChatPayload struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// ChatResult is the stored result of a completed chat task.
type ChatResult struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
}

// Task views

// PendingTaskResponse is returned when a synchronous wait times out; the
// caller polls GET /tasks/{id} with this id later.
type PendingTaskResponse struct {
	ID string `json:"id"`
}

// TaskResponse is the full task record view returned by GET /tasks/{id}.
type TaskResponse struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Error     *string         `json:"error"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TaskResultResponse is the result-only view returned by GET /tasks/{id}/result.
type TaskResultResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
}

// Worker wire shapes

// ClaimedTask is the task handed to a worker by POST /worker/next.
type ClaimedTask struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// ClaimResponse wraps the claim result; Task is null when no work is available.
type ClaimResponse struct {
	Task *ClaimedTask `json:"task"`
}

// WorkerCompleteRequest is the body of POST /worker/complete/{id}.
type WorkerCompleteRequest struct {
	Result json.RawMessage `json:"result" validate:"required"`
}

// WorkerFailRequest is the body of POST /worker/fail/{id}.
type WorkerFailRequest struct {
	Error string `json:"error" validate:"required"`
}

// WorkerStatusResponse acknowledges a completion or failure report.
type WorkerStatusResponse struct {
	Status string `json:"status"`
}
