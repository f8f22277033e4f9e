// Package chroma implements the vector index over a Chroma server's REST API.
// Embeddings are computed client-side; points carry generated ids while the
// chunk fingerprint lives in metadata, so deletes go through a metadata
// predicate the way the index contract expects.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"policyrag/embeddings"
	"policyrag/schema"
	"policyrag/vectordb/meta"
	"policyrag/vectorstores"
)

const (
	defaultBaseURL      = "http://localhost:8000"
	defaultCollection   = "policies"
	apiPrefix           = "/api/v1"
	defaultHTTPClientTO = 30 * time.Second
)

// Store is a REST client to a Chroma server.
type Store struct {
	baseURL    string
	collection string
	client     *http.Client
	embedder   embeddings.Embedder

	mu            sync.Mutex
	collectionIDs map[string]string
}

// Option configures the chroma store.
type Option func(*Store)

// WithBaseURL sets the server address (default: http://localhost:8000).
func WithBaseURL(baseURL string) Option {
	return func(s *Store) { s.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithCollection sets the collection used when no namespace is given.
func WithCollection(name string) Option {
	return func(s *Store) { s.collection = name }
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) { s.client = client }
}

// WithEmbedder sets the default embedder, overridable per call.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Store) { s.embedder = embedder }
}

// NewStore creates a chroma Store.
func NewStore(options ...Option) *Store {
	s := &Store{
		baseURL:       defaultBaseURL,
		collection:    defaultCollection,
		client:        &http.Client{Timeout: defaultHTTPClientTO},
		collectionIDs: make(map[string]string),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// AddDocuments embeds and stores documents. Existing points with the same
// fingerprints are deleted first so re-adding a chunk replaces it.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := vectorstores.NewOptions(opts...)
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	collectionID, err := s.ensureCollection(ctx, s.collectionName(options))
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	fingerprints := make([]string, len(docs))
	metadatas := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		fingerprint := meta.GetString(doc.Metadata, meta.FingerprintKey)
		if fingerprint == "" {
			return nil, fmt.Errorf("document %d has no fingerprint metadata", i)
		}
		texts[i] = doc.PageContent
		fingerprints[i] = fingerprint
		metadatas[i] = doc.Metadata
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors, expected %d", len(vectors), len(texts))
	}
	if err := s.deleteWhere(ctx, collectionID, fingerprints); err != nil {
		return nil, err
	}

	ids := make([]string, len(docs))
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	body := map[string]interface{}{
		"ids":        ids,
		"embeddings": vectors,
		"metadatas":  metadatas,
		"documents":  texts,
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/add", apiPrefix, collectionID), body, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteByFingerprints removes points whose fingerprint metadata is in the
// set; absent fingerprints are ignored.
func (s *Store) DeleteByFingerprints(ctx context.Context, fingerprints []string, opts ...vectorstores.Option) error {
	if len(fingerprints) == 0 {
		return nil
	}
	collectionID, err := s.ensureCollection(ctx, s.collectionName(vectorstores.NewOptions(opts...)))
	if err != nil {
		return err
	}
	return s.deleteWhere(ctx, collectionID, fingerprints)
}

// SimilaritySearch embeds the query and returns the closest chunks.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	options := vectorstores.NewOptions(opts...)
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	collectionID, err := s.ensureCollection(ctx, s.collectionName(options))
	if err != nil {
		return nil, err
	}
	if numDocuments <= 0 {
		numDocuments = 10
	}
	qvec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"query_embeddings": [][]float32{qvec},
		"n_results":        numDocuments,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	var resp struct {
		Documents [][]string                 `json:"documents"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
		Distances [][]float64                `json:"distances"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/query", apiPrefix, collectionID), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Documents) == 0 {
		return nil, nil
	}
	var docs []schema.Document
	for i, content := range resp.Documents[0] {
		// collections are created with cosine space, so distance = 1 - similarity
		score := float32(0)
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			score = 1 - float32(resp.Distances[0][i])
		}
		if options.MinScore > 0 && score < options.MinScore {
			continue
		}
		var metadata map[string]interface{}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			metadata = resp.Metadatas[0][i]
		}
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		docs = append(docs, schema.Document{PageContent: content, Metadata: metadata, Score: score})
	}
	return docs, nil
}

func (s *Store) deleteWhere(ctx context.Context, collectionID string, fingerprints []string) error {
	body := map[string]interface{}{
		"where": map[string]interface{}{
			meta.FingerprintKey: map[string]interface{}{"$in": fingerprints},
		},
	}
	return s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/delete", apiPrefix, collectionID), body, nil)
}

// ensureCollection resolves the collection id, creating the collection with
// cosine space on first use.
func (s *Store) ensureCollection(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.collectionIDs[name]; ok {
		return id, nil
	}
	body := map[string]interface{}{
		"name":          name,
		"get_or_create": true,
		"metadata":      map[string]interface{}{"hnsw:space": "cosine"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := s.postJSON(ctx, apiPrefix+"/collections", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("chroma: collection %q has no id", name)
	}
	s.collectionIDs[name] = resp.ID
	return resp.ID, nil
}

func (s *Store) collectionName(options *vectorstores.Options) string {
	if options.NameSpace != "" {
		return options.NameSpace
	}
	return s.collection
}

func (s *Store) resolveEmbedder(options *vectorstores.Options) (embeddings.Embedder, error) {
	if options.Embedder != nil {
		return options.Embedder, nil
	}
	if s.embedder != nil {
		return s.embedder, nil
	}
	return nil, fmt.Errorf("chroma: embedder is required")
}

func (s *Store) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("chroma %s: %s", path, errResp.Error)
		}
		return fmt.Errorf("chroma %s: %s", path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
