package mem

import (
	"policyrag/embeddings"
	"policyrag/vectordb/storage"
)

// StoreOption configures a Store.
type StoreOption func(s *Store)

// WithBaseURL enables snapshot persistence under the given location; without
// it the store is memory only.
func WithBaseURL(baseURL string) StoreOption {
	return func(s *Store) {
		s.baseURL = baseURL
	}
}

// WithEmbedder sets the default embedder used when a call carries none.
func WithEmbedder(embedder embeddings.Embedder) StoreOption {
	return func(s *Store) {
		s.embedder = embedder
	}
}

// WithExternalValues routes chunk payloads of newly created sets into an
// append-only value store instead of the heap.
func WithExternalValues(enabled bool) StoreOption {
	return func(s *Store) {
		s.setOptions = append(s.setOptions, WithSetExternalValues(enabled))
	}
}

// WithSegmentSize sets the value-store segment rotation size for new sets.
func WithSegmentSize(bytes int64) StoreOption {
	return func(s *Store) {
		s.setOptions = append(s.setOptions, WithSetSegmentSize(bytes))
	}
}

// WithSetValueStore injects a payload store into all newly created sets.
func WithSetValueStore(values storage.ValueStore) StoreOption {
	return func(s *Store) {
		s.setOptions = append(s.setOptions, WithValueStore(values))
	}
}

// SetOption configures a Set.
type SetOption func(s *Set)

// WithSetExternalValues is the Set-level variant of WithExternalValues.
func WithSetExternalValues(enabled bool) SetOption {
	return func(s *Set) { s.external = enabled }
}

// WithSetSegmentSize is the Set-level variant of WithSegmentSize.
func WithSetSegmentSize(bytes int64) SetOption {
	return func(s *Set) { s.segmentSize = bytes }
}

// WithValueStore injects a payload store into a Set and implies external
// values.
func WithValueStore(values storage.ValueStore) SetOption {
	return func(s *Set) { s.values = values }
}
