// Package pgvector implements the vector index on Postgres with the pgvector
// extension. Chunk rows are keyed (namespace, fingerprint) and similarity uses
// the cosine distance operator.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"policyrag/embeddings"
	"policyrag/schema"
	"policyrag/vectordb/meta"
	"policyrag/vectorstores"
)

const (
	defaultNamespace = "default"
	defaultTable     = "policy_chunks"
)

// Store is a pgvector backed vector index.
type Store struct {
	db            *sql.DB
	dsn           string
	table         string
	dimension     int
	ensureSchema  bool
	embedBatch    int
	embedder      embeddings.Embedder
	openedLocally bool
}

// Option configures the pgvector store.
type Option func(*Store)

// WithDB sets an existing *sql.DB to use.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithDSN sets the Postgres DSN to open.
func WithDSN(dsn string) Option {
	return func(s *Store) { s.dsn = dsn }
}

// WithTable sets the chunk table name (default: policy_chunks).
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithDimension fixes the vector column dimension; zero leaves it untyped.
func WithDimension(dimension int) Option {
	return func(s *Store) { s.dimension = dimension }
}

// WithEnsureSchema controls whether the extension and table are created
// automatically.
func WithEnsureSchema(enabled bool) Option {
	return func(s *Store) { s.ensureSchema = enabled }
}

// WithEmbedBatchSize sets the embedding batch size for AddDocuments.
func WithEmbedBatchSize(size int) Option {
	return func(s *Store) { s.embedBatch = size }
}

// WithEmbedder sets the default embedder, overridable per call.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Store) { s.embedder = embedder }
}

// NewStore opens/initializes a pgvector Store.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		table:        defaultTable,
		ensureSchema: true,
		embedBatch:   64,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.table == "" {
		s.table = defaultTable
	}
	if s.db == nil {
		if s.dsn == "" {
			return nil, fmt.Errorf("pgvector: dsn required")
		}
		db, err := sql.Open("postgres", s.dsn)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		s.openedLocally = true
	}
	if s.ensureSchema {
		if err := s.ensureSchemaDDL(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying DB if Store opened it.
func (s *Store) Close() error {
	if s.openedLocally && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// AddDocuments embeds and upserts documents, keyed by fingerprint so
// re-adding a chunk replaces the previous row.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := vectorstores.NewOptions(opts...)
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	namespace := s.namespace(options)

	vecs, err := embedDocuments(ctx, embedder, docs, s.embedBatch)
	if err != nil {
		return nil, err
	}
	stmt, err := s.db.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(namespace, fingerprint, content, metadata, embedding)
VALUES($1, $2, $3, $4, $5::vector)
ON CONFLICT (namespace, fingerprint) DO UPDATE SET
	content = EXCLUDED.content,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding`, s.table))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		fingerprint := meta.GetString(doc.Metadata, meta.FingerprintKey)
		if fingerprint == "" {
			return nil, fmt.Errorf("document %d has no fingerprint metadata", i)
		}
		ids[i] = fingerprint
		metadataJSON, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, namespace, fingerprint, doc.PageContent, metadataJSON, formatVector(vecs[i])); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// DeleteByFingerprints removes chunk rows; absent fingerprints are ignored.
func (s *Store) DeleteByFingerprints(ctx context.Context, fingerprints []string, opts ...vectorstores.Option) error {
	if len(fingerprints) == 0 {
		return nil
	}
	namespace := s.namespace(vectorstores.NewOptions(opts...))
	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND fingerprint = ANY($2)`, s.table)
	_, err := s.db.ExecContext(ctx, query, namespace, pq.Array(fingerprints))
	return err
}

// SimilaritySearch embeds the query and returns the closest chunks by cosine
// distance.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	options := vectorstores.NewOptions(opts...)
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	namespace := s.namespace(options)
	if numDocuments <= 0 {
		numDocuments = 10
	}
	qvec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(`SELECT fingerprint, content, metadata, embedding <=> $2::vector AS distance
FROM %s
WHERE namespace = $1
ORDER BY distance
LIMIT $3`, s.table)

	rows, err := s.db.QueryContext(ctx, stmt, namespace, formatVector(qvec), numDocuments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var fingerprint string
		var content string
		var metadataJSON []byte
		var distance float64
		if err := rows.Scan(&fingerprint, &content, &metadataJSON, &distance); err != nil {
			return nil, err
		}
		// cosine distance, so similarity = 1 - distance
		score := 1 - float32(distance)
		if options.MinScore > 0 && score < options.MinScore {
			continue
		}
		metadata, err := decodeMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		if _, ok := metadata[meta.FingerprintKey]; !ok {
			metadata[meta.FingerprintKey] = fingerprint
		}
		docs = append(docs, schema.Document{PageContent: content, Metadata: metadata, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) ensureSchemaDDL(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			namespace    TEXT NOT NULL,
			fingerprint  TEXT NOT NULL,
			content      TEXT NOT NULL,
			metadata     JSONB,
			embedding    %s,
			PRIMARY KEY (namespace, fingerprint)
		)`, s.table, s.vectorColumn()),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) vectorColumn() string {
	if s.dimension > 0 {
		return fmt.Sprintf("vector(%d)", s.dimension)
	}
	return "vector"
}

func (s *Store) resolveEmbedder(options *vectorstores.Options) (embeddings.Embedder, error) {
	if options.Embedder != nil {
		return options.Embedder, nil
	}
	if s.embedder != nil {
		return s.embedder, nil
	}
	return nil, fmt.Errorf("pgvector: embedder is required")
}

func (s *Store) namespace(options *vectorstores.Options) string {
	if options.NameSpace != "" {
		return options.NameSpace
	}
	return defaultNamespace
}

func embedDocuments(ctx context.Context, emb embeddings.Embedder, docs []schema.Document, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 64
	}
	out := make([][]float32, 0, len(docs))
	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[i:end]
		texts := make([]string, len(batch))
		for j := range batch {
			texts[j] = batch[j].PageContent
		}
		vecs, err := emb.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d docs", len(vecs), len(texts))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// formatVector renders a pgvector literal, e.g. [0.25,-1,0.5].
func formatVector(vector []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func encodeMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return json.Marshal(metadata)
}

func decodeMetadata(metadataJSON []byte) (map[string]interface{}, error) {
	if len(metadataJSON) == 0 {
		return map[string]interface{}{}, nil
	}
	metadata := map[string]interface{}{}
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
