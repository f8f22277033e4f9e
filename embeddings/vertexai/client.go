// Package vertexai embeds text through the Vertex AI prediction API using
// Google default credentials.
package vertexai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	defaultLocation    = "us-central1"
	defaultModel       = "text-embedding-004"
	defaultHTTPTimeout = 30 * time.Second
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithLocation sets the Vertex AI region (default: us-central1).
func WithLocation(location string) ClientOption {
	return func(c *Client) {
		if location != "" {
			c.Location = location
		}
	}
}

// WithScopes replaces the OAuth scopes requested from default credentials.
func WithScopes(scopes ...string) ClientOption {
	return func(c *Client) { c.Scopes = scopes }
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = client }
}

// Client calls the Vertex AI :predict endpoint and satisfies
// embeddings.Embedder. Credentials are resolved lazily on first use so the
// client can be constructed in environments that never embed.
type Client struct {
	ProjectID  string
	Location   string
	Model      string
	Scopes     []string
	HTTPClient *http.Client

	mu          sync.Mutex
	tokenSource oauth2.TokenSource
	initErr     error
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type predictInstance struct {
	Content string `json:"content"`
}

type predictResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// NewClient creates a client for the given project; an empty model falls back
// to text-embedding-004.
func NewClient(projectID, model string, opts ...ClientOption) *Client {
	c := &Client{
		ProjectID:  projectID,
		Location:   defaultLocation,
		Model:      model,
		Scopes:     []string{cloudPlatformScope},
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmbedDocuments embeds the given texts.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	tokenSource, err := c.resolveTokenSource(ctx)
	if err != nil {
		return nil, err
	}
	instances := make([]predictInstance, len(texts))
	for i, text := range texts {
		instances[i] = predictInstance{Content: text}
	}
	reqBody, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	token, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("vertexai token: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vertexai API error: %s", strings.TrimSpace(string(body)))
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Predictions) != len(texts) {
		return nil, fmt.Errorf("vertexai returned %d embeddings for %d inputs", len(out.Predictions), len(texts))
	}
	vectors := make([][]float32, len(out.Predictions))
	for i := range out.Predictions {
		vectors[i] = out.Predictions[i].Embeddings.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}
	return vectors[0], nil
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.Location, c.ProjectID, c.Location, c.Model)
}

func (c *Client) resolveTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenSource != nil || c.initErr != nil {
		return c.tokenSource, c.initErr
	}
	if c.ProjectID == "" {
		c.initErr = fmt.Errorf("vertexai project id is required")
		return nil, c.initErr
	}
	tokenSource, err := google.DefaultTokenSource(ctx, c.Scopes...)
	if err != nil {
		c.initErr = fmt.Errorf("vertexai token source: %w", err)
		return nil, c.initErr
	}
	c.tokenSource = tokenSource
	return c.tokenSource, nil
}
