// Package gateway turns user messages plus a state snapshot into command
// batches via an external language model.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one turn of the upstream conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the minimal surface the gateway needs from a model provider.
type Client interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// HTTPClient implements Client against any OpenAI-compatible
// chat-completions endpoint.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewHTTPClient creates a client from config, filling defaults.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation with a system message and returns the
// assistant reply text.
func (c *HTTPClient) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gateway: api key not configured")
	}

	all := make([]Message, 0, len(messages)+1)
	if system != "" {
		all = append(all, Message{Role: "system", Content: system})
	}
	all = append(all, messages...)

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: all})
	if err != nil {
		return "", fmt.Errorf("gateway: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gateway: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("gateway: decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gateway: api error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway: unexpected status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("gateway: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// ScriptedClient replays canned replies in order. It is the dry-run
// client used by tests and by the pipeline when no provider is configured.
type ScriptedClient struct {
	Replies []string
	Err     error

	calls int
	// Last request, for assertions.
	LastSystem   string
	LastMessages []Message
}

// Complete returns the next scripted reply.
func (c *ScriptedClient) Complete(_ context.Context, system string, messages []Message) (string, error) {
	c.LastSystem = system
	c.LastMessages = messages
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Replies) == 0 {
		return "", fmt.Errorf("gateway: scripted client has no replies")
	}
	reply := c.Replies[c.calls%len(c.Replies)]
	c.calls++
	return reply, nil
}
