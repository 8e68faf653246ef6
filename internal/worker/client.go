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

// Client talks to the queue server's worker endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a queue server client. The timeout bounds every
// claim/report call so a wedged server can never stall the worker loop.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ClaimNext asks the server for the next pending task.
// Returns (nil, nil) when no work is available.
func (c *Client) ClaimNext(ctx context.Context) (*api.ClaimedTask, error) {
	var resp api.ClaimResponse
	if err := c.post(ctx, "/worker/next", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// Complete reports a successful result for a claimed task.
func (c *Client) Complete(ctx context.Context, taskID string, result json.RawMessage) error {
	body := api.WorkerCompleteRequest{Result: result}
	return c.post(ctx, "/worker/complete/"+taskID, body, nil)
}

// Fail reports a failure for a claimed task.
func (c *Client) Fail(ctx context.Context, taskID string, errorMsg string) error {
	body := api.WorkerFailRequest{Error: errorMsg}
	return c.post(ctx, "/worker/fail/"+taskID, body, nil)
}

// post sends an authenticated POST and decodes a JSON response into out
// when out is non-nil. Non-2xx statuses become errors carrying the server's
// error body.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request to %s failed: %s: %s", path, resp.Status, readErrorBody(resp.Body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return nil
}

// readErrorBody extracts the server's error message for diagnostics,
// falling back to the raw body when it is not the standard error shape.
func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}

	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(raw)
}
