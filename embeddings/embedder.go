package embeddings

import "context"

// Embedder computes vector embeddings for chunk text and for queries.
// Provider clients live in the openai, ollama and vertexai subpackages;
// SimpleEmbedder is the deterministic local fallback and Cache decorates
// any of them.
type Embedder interface {
	// EmbedDocuments embeds a batch of texts, one vector per input in order.
	EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error)
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
