// Package vectordb defines the vector index contract the reconciler and the
// retrieval side share, with backends under vectordb/mem, vectordb/sqlitevec,
// vectordb/chroma and vectordb/pgvector.
package vectordb

import (
	"context"

	"policyrag/schema"
	"policyrag/vectorstores"
)

// Index defines storing, deleting and querying policy chunks by vector
// similarity. Implementations must treat AddDocuments as an upsert keyed by
// the fingerprint metadata and DeleteByFingerprints as idempotent: deleting
// an absent fingerprint is not an error.
type Index interface {
	AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error)
	DeleteByFingerprints(ctx context.Context, fingerprints []string, opts ...vectorstores.Option) error
	SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error)
}

// Persister flushes buffered index state to durable storage. Backends that
// persist on every mutation do not implement it.
type Persister interface {
	Persist(ctx context.Context) error
}
