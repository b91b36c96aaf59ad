package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RelayClient speaks the generic edit-backend wire contract:
// POST {model, instruction, text, temperature} -> {editedText} | {error}.
// It lets any conforming HTTP service act as an editing backend.
type RelayClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewRelayClient(baseURL, model, apiKey string) *RelayClient {
	return &RelayClient{
		baseURL: baseURL,
		model:   model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *RelayClient) Name() string {
	return "relay/" + c.model
}

type relayRequest struct {
	Model       string  `json:"model"`
	Instruction string  `json:"instruction"`
	Text        string  `json:"text"`
	Temperature float64 `json:"temperature"`
}

type relayResponse struct {
	EditedText string `json:"editedText"`
	Error      string `json:"error,omitempty"`
}

func (c *RelayClient) Edit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(relayRequest{
		Model:       c.model,
		Instruction: req.Instruction,
		Text:        req.Text,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("relay backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &CallError{
			Backend:    c.Name(),
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 200),
		}
	}

	var apiResp relayResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != "" {
		return "", &CallError{Backend: c.Name(), Message: apiResp.Error}
	}
	return apiResp.EditedText, nil
}

// Close releases resources.
func (c *RelayClient) Close() {
	c.httpClient.CloseIdleConnections()
}
