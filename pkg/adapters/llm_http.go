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

// HTTPLLMClient calls an external inference gateway over HTTP+JSON. The
// gateway is treated as opaque: one request, one completion, no streaming —
// the orchestration core only ever needs a final text response (§4.9,
// §6.3).
type HTTPLLMClient struct {
	endpoint   string
	credential string
	httpClient *http.Client
}

// NewHTTPLLMClient builds a client against endpoint, authenticating with a
// bearer token taken from LLM_CREDENTIAL.
func NewHTTPLLMClient(endpoint, credential string) *HTTPLLMClient {
	return &HTTPLLMClient{
		endpoint:   endpoint,
		credential: credential,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type llmGenerateRequest struct {
	SystemInstruction string             `json:"system_instruction"`
	Conversation      []ConversationTurn `json:"conversation"`
}

type llmGenerateResponse struct {
	Text string `json:"text"`
}

// Generate implements LLMClient.
func (c *HTTPLLMClient) Generate(ctx context.Context, systemInstruction string, conversation []ConversationTurn) (string, error) {
	body, err := json.Marshal(llmGenerateRequest{
		SystemInstruction: systemInstruction,
		Conversation:      conversation,
	})
	if err != nil {
		return "", fmt.Errorf("encode llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call llm: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed llmGenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	return parsed.Text, nil
}
