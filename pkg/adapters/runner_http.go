package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRunnerClient submits and polls batch jobs on the external headless
// runner (§4.7, §4.9).
type HTTPRunnerClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPRunnerClient builds a client against endpoint.
func NewHTTPRunnerClient(endpoint string) *HTTPRunnerClient {
	return &HTTPRunnerClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit implements RunnerClient.
func (c *HTTPRunnerClient) Submit(ctx context.Context, payloadRef string) (string, error) {
	body, _ := json.Marshal(map[string]string{"payload_reference": payloadRef})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/executions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build runner submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit to runner: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read runner submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("runner submit returned %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		ExecutionID string `json:"execution_id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode runner submit response: %w", err)
	}
	return out.ExecutionID, nil
}

// Status implements RunnerClient.
func (c *HTTPRunnerClient) Status(ctx context.Context, executionID string) (ExecutionStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/executions/"+executionID, nil)
	if err != nil {
		return ExecutionStatus{}, fmt.Errorf("build runner status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ExecutionStatus{}, fmt.Errorf("poll runner: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExecutionStatus{}, fmt.Errorf("read runner status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ExecutionStatus{}, fmt.Errorf("runner status returned %d: %s", resp.StatusCode, string(raw))
	}

	var out ExecutionStatus
	if err := json.Unmarshal(raw, &out); err != nil {
		return ExecutionStatus{}, fmt.Errorf("decode runner status response: %w", err)
	}
	return out, nil
}
