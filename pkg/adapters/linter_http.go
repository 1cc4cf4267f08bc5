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

// HTTPLinterClient calls the external parser/linter HTTP service.
type HTTPLinterClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPLinterClient builds a client against endpoint.
func NewHTTPLinterClient(endpoint string) *HTTPLinterClient {
	return &HTTPLinterClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type lintTopologyRequest struct {
	TopologyYAML string `json:"topology_yaml"`
}

type lintCLIRequest struct {
	DeviceType string            `json:"device_type"`
	Commands   []string          `json:"commands"`
	Options    map[string]string `json:"options,omitempty"`
}

func (c *HTTPLinterClient) post(ctx context.Context, path string, reqBody, respBody any) error {
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode linter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build linter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call linter: %w", err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read linter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linter returned %d: %s", resp.StatusCode, string(raw))
	}
	return json.Unmarshal(raw, respBody)
}

// LintTopology implements LinterClient.
func (c *HTTPLinterClient) LintTopology(ctx context.Context, topologyYAML string) ([]LintIssue, error) {
	var out struct {
		Issues []LintIssue `json:"issues"`
	}
	if err := c.post(ctx, "/v1/lint/topology", lintTopologyRequest{TopologyYAML: topologyYAML}, &out); err != nil {
		return nil, err
	}
	return out.Issues, nil
}

// LintCLI implements LinterClient.
func (c *HTTPLinterClient) LintCLI(ctx context.Context, deviceType string, commands []string, options map[string]string) ([]CommandResult, error) {
	var out struct {
		Results []CommandResult `json:"results"`
	}
	req := lintCLIRequest{DeviceType: deviceType, Commands: commands, Options: options}
	if err := c.post(ctx, "/v1/lint/cli", req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
