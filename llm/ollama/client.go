// Package ollama generates chat completions through a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"policyrag/llm"
)

const (
	defaultBaseURL     = "http://localhost:11434"
	chatEndpoint       = "/api/chat"
	defaultTemperature = 0.7
	defaultHTTPTimeout = 120 * time.Second
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL overrides the server address (default: http://localhost:11434).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) { c.Temperature = temperature }
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = client }
}

// Client calls the Ollama chat API and satisfies llm.Client.
type Client struct {
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []llm.Message          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Error   string      `json:"error"`
}

// NewClient creates a client for the given model.
func NewClient(model string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:     defaultBaseURL,
		Model:       model,
		Temperature: defaultTemperature,
		HTTPClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat generates a completion for the conversation.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	if c.Model == "" {
		return "", fmt.Errorf("ollama model is required")
	}
	options := &llm.Options{Model: c.Model, Temperature: c.Temperature}
	for _, opt := range opts {
		opt(options)
	}
	generation := map[string]interface{}{"temperature": options.Temperature}
	if options.MaxTokens > 0 {
		generation["num_predict"] = options.MaxTokens
	}
	reqBody, err := json.Marshal(chatRequest{
		Model:    options.Model,
		Messages: messages,
		Stream:   false,
		Options:  generation,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+chatEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error: %s", strings.TrimSpace(string(body)))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama API error: %s", out.Error)
	}
	return out.Message.Content, nil
}
