// Package service wires the corpus, the vector index and the model providers
// behind one configured facade used by the CLI and the MCP server.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/viant/afs/url"

	"policyrag/assistant"
	"policyrag/embeddings"
	ollamaembed "policyrag/embeddings/ollama"
	openaiembed "policyrag/embeddings/openai"
	"policyrag/embeddings/vertexai"
	"policyrag/llm"
	ollamachat "policyrag/llm/ollama"
	openaichat "policyrag/llm/openai"
	"policyrag/loader"
	"policyrag/loader/split"
	"policyrag/manifest"
	"policyrag/matching"
	"policyrag/matching/option"
	"policyrag/reconciler"
	"policyrag/schema"
	"policyrag/vectordb"
	"policyrag/vectordb/chroma"
	"policyrag/vectordb/mem"
	"policyrag/vectordb/pgvector"
	"policyrag/vectordb/sqlitevec"
	"policyrag/vectorstores"
)

// stateDirName holds the manifest under the corpus location; the matcher
// always excludes it.
const stateDirName = ".policyrag"

const defaultSearchLimit = 5

// Option configures the Service.
type Option func(*Service)

// WithIndex sets an existing vector index instead of building one from the
// config.
func WithIndex(index vectordb.Index) Option {
	return func(s *Service) { s.index = index }
}

// WithEmbedder sets an existing embedder instead of building one from the
// config.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Service) { s.embedder = embedder }
}

// WithLLMClient sets an existing chat client instead of building one from
// the config.
func WithLLMClient(client llm.Client) Option {
	return func(s *Service) { s.chat = client }
}

// WithFS sets the storage service used to list and download documents.
func WithFS(fs loader.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithExportDB sets an existing warehouse handle used by Export instead of
// opening one from the export config.
func WithExportDB(db *sql.DB) Option {
	return func(s *Service) { s.exportDB = db }
}

// WithLogf routes progress messages; by default they are discarded.
func WithLogf(logf func(format string, args ...interface{})) Option {
	return func(s *Service) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// Service exposes the corpus operations: batch reconcile, search, question
// answering, status and warehouse export.
type Service struct {
	config    *Config
	fs        loader.Service
	documents *loader.Loader
	matcher   *matching.Manager
	embedder  embeddings.Embedder
	index     vectordb.Index
	chat      llm.Client
	assist    *assistant.Assistant
	store     *manifest.Store
	exportDB  *sql.DB
	logf      func(format string, args ...interface{})
	closers   []io.Closer
	mu        sync.Mutex
}

// New builds a Service from the config. Components not overridden by options
// are constructed from their config sections; an absent llm section leaves
// Ask unavailable while the other operations keep working.
func New(config *Config, opts ...Option) (*Service, error) {
	if config == nil {
		config = &Config{}
	}
	s := &Service{
		config: config,
		logf:   func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		s.fs = loader.NewAFS()
	}
	if s.embedder == nil {
		embedder, err := buildEmbedder(config.Embedding)
		if err != nil {
			return nil, err
		}
		s.embedder = embedder
	}
	if config.Embedding.CacheSize > 0 {
		s.embedder = embeddings.NewCache(s.embedder, config.Embedding.CacheSize)
	}
	if s.index == nil {
		index, closer, err := buildIndex(config.Index, s.embedder)
		if err != nil {
			return nil, err
		}
		s.index = index
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}
	if s.chat == nil {
		client, err := buildChatClient(config.LLM)
		if err != nil {
			return nil, err
		}
		s.chat = client
	}
	s.matcher = buildMatcher(config.Corpus)
	s.documents = loader.New(loader.WithSplitter(buildSplitter(config.Corpus)))
	if stateURL := s.stateURL(config.Corpus.Location); stateURL != "" {
		s.store = manifest.NewStore(stateURL)
	}
	if s.chat != nil {
		s.assist = assistant.New(s.index, s.chat,
			assistant.WithTopK(config.Assistant.TopK),
			assistant.WithSearchOptions(s.searchOptions()...))
	}
	return s, nil
}

// Close releases locally opened index resources.
func (s *Service) Close() error {
	var firstErr error
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Process reconciles the documents under location against the manifest and
// the vector index. An empty location falls back to the configured corpus.
// The manifest is locked for the duration of the run so concurrent batch
// runs cannot interleave.
func (s *Service) Process(ctx context.Context, location string) (*reconciler.Stats, error) {
	if location == "" {
		location = s.config.Corpus.Location
	}
	if location == "" {
		return nil, fmt.Errorf("corpus location is required")
	}
	store, err := s.ensureStore(location)
	if err != nil {
		return nil, err
	}
	if err := store.Lock(); err != nil {
		return nil, err
	}
	defer func() { _ = store.Unlock() }()
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	if err := s.matcher.LoadIgnore(ctx, location); err != nil {
		return nil, err
	}
	processor := reconciler.NewProcessor(s.fs, s.documents, s.matcher, s.index, store,
		reconciler.WithConcurrency(s.config.Corpus.Concurrency),
		reconciler.WithLogf(s.logf),
		reconciler.WithIndexOptions(s.indexOptions()...))
	return processor.Run(ctx, location)
}

// Search returns the chunks closest to query. A non-positive limit falls
// back to the configured top-k.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]schema.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		limit = s.config.Assistant.TopK
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.index.SimilaritySearch(ctx, query, limit, s.searchOptions()...)
}

// Ask answers a question grounded in the indexed corpus. History carries the
// prior turns of the conversation; the caller owns it.
func (s *Service) Ask(ctx context.Context, question string, history []assistant.Turn) (*assistant.Answer, error) {
	if s.assist == nil {
		return nil, fmt.Errorf("llm provider is not configured")
	}
	return s.assist.Ask(ctx, question, history)
}

// Status reports per-document chunk counts and last-processed times from the
// manifest.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	store, err := s.ensureStore(s.config.Corpus.Location)
	if err != nil {
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	man := store.Manifest()
	ret := &Status{ManifestURL: store.URL()}
	for _, path := range man.Paths() {
		entry, ok := man.Get(path)
		if !ok {
			continue
		}
		ret.Documents = append(ret.Documents, DocumentStatus{
			Path:          path,
			Chunks:        len(entry.Chunks),
			LastProcessed: entry.LastProcessed,
		})
		ret.TotalChunks += len(entry.Chunks)
	}
	ret.TotalDocuments = len(ret.Documents)
	return ret, nil
}

// ensureStore returns the manifest store, deriving its location from the
// corpus when the config left it open.
func (s *Service) ensureStore(location string) (*manifest.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	stateURL := s.stateURL(location)
	if stateURL == "" {
		return nil, fmt.Errorf("corpus location is required")
	}
	s.store = manifest.NewStore(stateURL)
	return s.store, nil
}

func (s *Service) stateURL(location string) string {
	if s.config.Corpus.StateURL != "" {
		return s.config.Corpus.StateURL
	}
	if location == "" {
		return ""
	}
	return url.Join(location, stateDirName)
}

// searchOptions carries the embedder, namespace and score floor into every
// similarity search.
func (s *Service) searchOptions() []vectorstores.Option {
	opts := s.indexOptions()
	if s.config.Assistant.MinScore > 0 {
		opts = append(opts, vectorstores.WithMinScore(s.config.Assistant.MinScore))
	}
	return opts
}

// indexOptions carries the embedder and namespace into every index mutation.
func (s *Service) indexOptions() []vectorstores.Option {
	var opts []vectorstores.Option
	if s.embedder != nil {
		opts = append(opts, vectorstores.WithEmbedder(s.embedder))
	}
	if ns := s.config.Index.Namespace; ns != "" {
		opts = append(opts, vectorstores.WithNameSpace(ns))
	}
	return opts
}

func buildEmbedder(cfg ProviderConfig) (embeddings.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "simple":
		return embeddings.NewSimpleEmbedder(cfg.Dimension), nil
	case "openai":
		var opts []openaiembed.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, openaiembed.WithBaseURL(cfg.BaseURL))
		}
		return openaiembed.NewClient(cfg.APIKey, cfg.Model, opts...), nil
	case "ollama":
		var opts []ollamaembed.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, ollamaembed.WithBaseURL(cfg.BaseURL))
		}
		return ollamaembed.NewClient(cfg.Model, opts...), nil
	case "vertexai":
		var opts []vertexai.ClientOption
		if cfg.Location != "" {
			opts = append(opts, vertexai.WithLocation(cfg.Location))
		}
		return vertexai.NewClient(cfg.Project, cfg.Model, opts...), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

func buildIndex(cfg IndexConfig, embedder embeddings.Embedder) (vectordb.Index, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "mem":
		opts := []mem.StoreOption{mem.WithEmbedder(embedder)}
		if cfg.SnapshotURL != "" {
			opts = append(opts, mem.WithBaseURL(cfg.SnapshotURL))
		}
		if cfg.ExternalValues {
			opts = append(opts, mem.WithExternalValues(true))
		}
		if cfg.SegmentSize > 0 {
			opts = append(opts, mem.WithSegmentSize(cfg.SegmentSize))
		}
		store := mem.NewStore(opts...)
		return store, store, nil
	case "sqlitevec":
		opts := []sqlitevec.Option{sqlitevec.WithDSN(cfg.DSN), sqlitevec.WithEmbedder(embedder)}
		if cfg.VTable != "" {
			opts = append(opts, sqlitevec.WithVTable(cfg.VTable))
		}
		store, err := sqlitevec.NewStore(opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "chroma":
		opts := []chroma.Option{chroma.WithEmbedder(embedder)}
		if cfg.BaseURL != "" {
			opts = append(opts, chroma.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Collection != "" {
			opts = append(opts, chroma.WithCollection(cfg.Collection))
		}
		return chroma.NewStore(opts...), nil, nil
	case "pgvector":
		opts := []pgvector.Option{pgvector.WithDSN(cfg.DSN), pgvector.WithEmbedder(embedder)}
		if cfg.Table != "" {
			opts = append(opts, pgvector.WithTable(cfg.Table))
		}
		if cfg.Dimension > 0 {
			opts = append(opts, pgvector.WithDimension(cfg.Dimension))
		}
		store, err := pgvector.NewStore(opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
}

func buildChatClient(cfg ProviderConfig) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "openai":
		var opts []openaichat.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, openaichat.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Temperature != nil {
			opts = append(opts, openaichat.WithTemperature(*cfg.Temperature))
		}
		return openaichat.NewClient(cfg.APIKey, cfg.Model, opts...), nil
	case "ollama":
		var opts []ollamachat.ClientOption
		if cfg.BaseURL != "" {
			opts = append(opts, ollamachat.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Temperature != nil {
			opts = append(opts, ollamachat.WithTemperature(*cfg.Temperature))
		}
		return ollamachat.NewClient(cfg.Model, opts...), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// buildSplitter treats unset chunking values as the splitter defaults rather
// than as explicit zeros.
func buildSplitter(cfg CorpusConfig) *split.Splitter {
	size := cfg.ChunkSize
	if size <= 0 {
		size = split.DefaultSize
	}
	overlap := cfg.ChunkOverlap
	if overlap <= 0 {
		overlap = split.DefaultOverlap
	}
	return split.New(size, overlap)
}

func buildMatcher(cfg CorpusConfig) *matching.Manager {
	opts := []option.Option{
		option.WithDefaultExclusionPatterns(),
		option.WithExclusionPatterns(stateDirName + "/"),
	}
	if len(cfg.Include) > 0 {
		opts = append(opts, option.WithInclusionPatterns(cfg.Include...))
	}
	if len(cfg.Exclude) > 0 {
		opts = append(opts, option.WithExclusionPatterns(cfg.Exclude...))
	}
	if cfg.MaxSizeBytes > 0 {
		opts = append(opts, option.WithMaxProcessableSize(cfg.MaxSizeBytes))
	}
	return matching.New(opts...)
}
