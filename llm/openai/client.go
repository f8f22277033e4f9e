// Package openai generates chat completions through the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"policyrag/llm"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	chatEndpoint       = "/chat/completions"
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.7
	defaultHTTPTimeout = 60 * time.Second
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL overrides the API address, e.g. for a compatible proxy.
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

// Client calls the OpenAI chat completions API and satisfies llm.Client.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
}

// NewClient creates a client; an empty apiKey falls back to OPENAI_API_KEY
// and an empty model to gpt-4o-mini.
func NewClient(apiKey, model string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:     defaultBaseURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: defaultTemperature,
		HTTPClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat generates a completion for the conversation.
func (c *Client) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{Model: c.Model, Temperature: c.Temperature}
	for _, opt := range opts {
		opt(options)
	}
	reqBody, err := json.Marshal(chatRequest{
		Model:       options.Model,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+chatEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct{ Message, Type string } `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%s): %s", errResp.Error.Type, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error: %s", resp.Status)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
