// Package vectorstores holds the per-call options shared by every vector
// index backend.
package vectorstores

import (
	"policyrag/embeddings"
)

// Option applies configuration to Options.
type Option func(*Options)

// Options collects optional parameters for vector store operations.
type Options struct {
	Embedder  embeddings.Embedder
	NameSpace string
	// MinScore drops search results scoring below the threshold.
	MinScore float32
}

// NewOptions materializes the applied options.
func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithEmbedder sets the embedder to use.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(o *Options) { o.Embedder = e }
}

// WithNameSpace sets the logical namespace to operate on.
func WithNameSpace(ns string) Option {
	return func(o *Options) { o.NameSpace = ns }
}

// WithMinScore filters out results scoring below the threshold.
func WithMinScore(score float32) Option {
	return func(o *Options) {
		if score > 0 {
			o.MinScore = score
		}
	}
}
