package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/llmequeue/llmequeue/internal/api"
)

// Per-call deadlines against the model server. Chat generations run far
// longer than embeddings.
const (
	embeddingTimeout = 60 * time.Second
	chatTimeout      = 5 * time.Minute
)

// OllamaClient calls the Ollama HTTP API for embeddings and chat
// completions.
type OllamaClient struct {
	baseURL string
	http    *http.Client
}

// NewOllamaClient creates a client for the Ollama server at baseURL.
func NewOllamaClient(baseURL string) *OllamaClient {
	return &OllamaClient{
		baseURL: baseURL,
		// Deadlines are applied per call; chat and embeddings differ too
		// much for a single client timeout.
		http: &http.Client{},
	}
}

// Embedding computes the embedding vector for the given text.
func (c *OllamaClient) Embedding(ctx context.Context, model, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, embeddingTimeout)
	defer cancel()

	reqBody := map[string]interface{}{
		"model":  model,
		"prompt": text,
	}

	var resp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := c.post(ctx, "/api/embeddings", reqBody, &resp); err != nil {
		return nil, err
	}

	if resp.Embedding == nil {
		return nil, fmt.Errorf("malformed Ollama response: missing 'embedding' field")
	}

	return resp.Embedding, nil
}

// ChatCompletion runs a non-streaming chat completion.
func (c *OllamaClient) ChatCompletion(ctx context.Context, payload api.ChatPayload) (*api.ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	options := map[string]interface{}{}
	if payload.Temperature != nil {
		options["temperature"] = *payload.Temperature
	}
	if payload.MaxTokens != nil {
		options["num_predict"] = *payload.MaxTokens
	}

	reqBody := map[string]interface{}{
		"model":    payload.Model,
		"messages": payload.Messages,
		"stream":   false,
		"options":  options,
	}

	var resp struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
		Done bool `json:"done"`
	}
	if err := c.post(ctx, "/api/chat", reqBody, &resp); err != nil {
		return nil, err
	}

	if resp.Message == nil {
		return nil, fmt.Errorf("malformed Ollama response: missing 'message.content' field")
	}

	finishReason := "stop"
	if !resp.Done {
		finishReason = "length"
	}

	return &api.ChatResult{
		Content:      resp.Message.Content,
		FinishReason: finishReason,
	}, nil
}

// post sends a JSON POST to the Ollama API and decodes the response.
func (c *OllamaClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to Ollama %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("Ollama %s returned %s: %s", path, resp.Status, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode Ollama response from %s: %w", path, err)
	}

	return nil
}
