// Package mem provides an in-process vector index with brute-force cosine
// search and optional bintly snapshots, suitable for local corpora and tests.
package mem

import (
	"context"
	"fmt"
	"sync"

	"policyrag/embeddings"
	"policyrag/schema"
	"policyrag/vectorstores"
)

const defaultSetID = "default"

// Store manages one Set per namespace.
type Store struct {
	baseURL    string
	embedder   embeddings.Embedder
	setOptions []SetOption
	sets       map[string]*Set
	sync.RWMutex
}

// NewStore creates a Store.
func NewStore(options ...StoreOption) *Store {
	ret := &Store{
		sets: make(map[string]*Set),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// BaseURL returns the snapshot location, empty for memory-only stores.
func (s *Store) BaseURL() string {
	return s.baseURL
}

// AddDocuments upserts documents into the namespace set.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	options := vectorstores.NewOptions(opts...)
	set, err := s.getSet(ctx, options)
	if err != nil {
		return nil, err
	}
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	return set.add(ctx, docs, embedder)
}

// DeleteByFingerprints drops documents from the namespace set; absent
// fingerprints are ignored.
func (s *Store) DeleteByFingerprints(ctx context.Context, fingerprints []string, opts ...vectorstores.Option) error {
	set, err := s.getSet(ctx, vectorstores.NewOptions(opts...))
	if err != nil {
		return err
	}
	set.deleteByFingerprints(fingerprints)
	return nil
}

// SimilaritySearch returns the top numDocuments chunks for the query.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	options := vectorstores.NewOptions(opts...)
	set, err := s.getSet(ctx, options)
	if err != nil {
		return nil, err
	}
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	return set.search(ctx, query, numDocuments, embedder, options.MinScore)
}

// Close releases the payload stores of every set.
func (s *Store) Close() error {
	s.RWMutex.Lock()
	defer s.RWMutex.Unlock()
	var firstErr error
	for _, set := range s.sets {
		if err := set.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Persist writes a snapshot of every namespace set.
func (s *Store) Persist(ctx context.Context) error {
	s.RWMutex.RLock()
	sets := make([]*Set, 0, len(s.sets))
	for _, set := range s.sets {
		sets = append(sets, set)
	}
	s.RWMutex.RUnlock()
	for _, set := range sets {
		if err := set.persist(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) resolveEmbedder(options *vectorstores.Options) (embeddings.Embedder, error) {
	if options.Embedder != nil {
		return options.Embedder, nil
	}
	if s.embedder != nil {
		return s.embedder, nil
	}
	return nil, fmt.Errorf("mem: embedder is required")
}

func (s *Store) getSet(ctx context.Context, options *vectorstores.Options) (*Set, error) {
	setName := options.NameSpace
	if setName == "" {
		setName = defaultSetID
	}
	var err error
	s.RWMutex.Lock()
	defer s.RWMutex.Unlock()
	set, ok := s.sets[setName]
	if !ok {
		if set, err = newSet(ctx, s.baseURL, setName, s.setOptions...); err != nil {
			return nil, err
		}
		s.sets[setName] = set
	}
	return set, nil
}
