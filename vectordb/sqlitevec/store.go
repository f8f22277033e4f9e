package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vec"
	"github.com/viant/sqlite-vec/vector"

	"policyrag/embeddings"
	"policyrag/schema"
	"policyrag/vectordb/meta"
	"policyrag/vectorstores"
)

const (
	defaultNamespace = "default"
	defaultVTable    = "policy_chunks"
	busyTimeoutMS    = 5000
	deleteBatchSize  = 500
)

// Store is a sqlite-vec backed vector index. Chunk rows live in the shadow
// table behind the vec virtual table; the vec module resolves its backing
// rows from "_vec_"+vtable by column name, so dataset_id carries the
// namespace and id carries the chunk fingerprint.
type Store struct {
	db            *sql.DB
	dsn           string
	vtable        string
	shadow        string
	ensureSchema  bool
	embedBatch    int
	embedModel    string
	embedder      embeddings.Embedder
	openedLocally bool
}

// Option configures the sqlite-vec store.
type Option func(*Store)

// WithDB sets an existing *sql.DB to use.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithDSN sets the SQLite DSN to open (e.g. /path/to/policies.db).
func WithDSN(dsn string) Option {
	return func(s *Store) { s.dsn = dsn }
}

// WithVTable sets the vec virtual table name (default: policy_chunks).
func WithVTable(name string) Option {
	return func(s *Store) { s.vtable = name }
}

// WithEnsureSchema controls whether tables are created automatically.
func WithEnsureSchema(enabled bool) Option {
	return func(s *Store) { s.ensureSchema = enabled }
}

// WithEmbedBatchSize sets the embedding batch size for AddDocuments.
func WithEmbedBatchSize(size int) Option {
	return func(s *Store) { s.embedBatch = size }
}

// WithEmbeddingModel sets the embedding_model stored with rows.
func WithEmbeddingModel(model string) Option {
	return func(s *Store) { s.embedModel = model }
}

// WithEmbedder sets the default embedder, overridable per call.
func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(s *Store) { s.embedder = embedder }
}

// NewStore opens/initializes a sqlite-vec Store.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		vtable:       defaultVTable,
		ensureSchema: true,
		embedBatch:   64,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.vtable == "" {
		s.vtable = defaultVTable
	}
	s.shadow = "_vec_" + s.vtable

	if s.db == nil {
		if s.dsn == "" {
			return nil, fmt.Errorf("sqlitevec: dsn required")
		}
		db, err := engine.Open(ensurePragmas(s.dsn))
		if err != nil {
			return nil, err
		}
		s.db = db
		s.db.SetMaxOpenConns(4)
		s.db.SetMaxIdleConns(4)
		s.openedLocally = true
	}
	if err := vec.Register(s.db); err != nil {
		return nil, err
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

// Persist is a no-op for sqlite-vec; data is persisted on each write.
func (s *Store) Persist(ctx context.Context) error { return nil }

// AddDocuments embeds and upserts documents into the shadow table, keyed by
// fingerprint so re-adding a chunk replaces the previous row.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := vectorstores.NewOptions(opts...)
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	dataset := s.dataset(options)

	vecs, err := embedDocuments(ctx, embedder, docs, s.embedBatch)
	if err != nil {
		return nil, err
	}
	stmt, err := s.db.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(dataset_id, id, content, meta, embedding, embedding_model, archived)
VALUES(?,?,?,?,?,?,0)
ON CONFLICT(dataset_id, id) DO UPDATE SET
	content=excluded.content,
	meta=excluded.meta,
	embedding=excluded.embedding,
	embedding_model=excluded.embedding_model,
	archived=0`, s.shadow))
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
		metaJSON, err := encodeMeta(doc.Metadata)
		if err != nil {
			return nil, err
		}
		blob, err := vector.EncodeEmbedding(vecs[i])
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, dataset, fingerprint, doc.PageContent, metaJSON, blob, s.embedModel); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// DeleteByFingerprints removes chunk rows outright; absent fingerprints are
// ignored.
func (s *Store) DeleteByFingerprints(ctx context.Context, fingerprints []string, opts ...vectorstores.Option) error {
	if len(fingerprints) == 0 {
		return nil
	}
	dataset := s.dataset(vectorstores.NewOptions(opts...))
	for start := 0; start < len(fingerprints); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(fingerprints) {
			end = len(fingerprints)
		}
		batch := fingerprints[start:end]
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, dataset)
		placeholders := make([]string, len(batch))
		for i, fingerprint := range batch {
			placeholders[i] = "?"
			args = append(args, fingerprint)
		}
		query := fmt.Sprintf(`DELETE FROM %s WHERE dataset_id = ? AND id IN (%s)`, s.shadow, strings.Join(placeholders, ","))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// SimilaritySearch performs a MATCH query over the sqlite-vec virtual table.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	options := vectorstores.NewOptions(opts...)
	embedder, err := s.resolveEmbedder(options)
	if err != nil {
		return nil, err
	}
	dataset := s.dataset(options)
	if numDocuments <= 0 {
		numDocuments = 10
	}
	qvec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	blob, err := vector.EncodeEmbedding(qvec)
	if err != nil {
		return nil, err
	}
	return s.queryOnce(ctx, dataset, blob, numDocuments, options.MinScore)
}

func (s *Store) queryOnce(ctx context.Context, dataset string, blob []byte, k int, minScore float32) ([]schema.Document, error) {
	query := fmt.Sprintf(`SELECT d.id, d.content, d.meta, v.match_score
FROM %s v
JOIN %s d ON d.dataset_id = v.dataset_id AND d.id = v.doc_id
WHERE v.dataset_id = ?
  AND v.doc_id MATCH ?
  AND d.archived = 0
ORDER BY v.match_score DESC
LIMIT ?`, s.vtable, s.shadow)

	rows, err := s.db.QueryContext(ctx, query, dataset, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var id string
		var content string
		var metaJSON string
		var score float64
		if err := rows.Scan(&id, &content, &metaJSON, &score); err != nil {
			return nil, err
		}
		if minScore > 0 && float32(score) < minScore {
			continue
		}
		metaMap, err := decodeMeta(metaJSON)
		if err != nil {
			return nil, err
		}
		if _, ok := metaMap[meta.FingerprintKey]; !ok {
			metaMap[meta.FingerprintKey] = id
		}
		docs = append(docs, schema.Document{PageContent: content, Metadata: metaMap, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) ensureSchemaDDL(ctx context.Context) error {
	// archived is part of the vec module's backing-row shape; rows here are
	// deleted outright, so it stays 0.
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			dataset_id       TEXT NOT NULL,
			id               TEXT NOT NULL,
			content          TEXT,
			meta             TEXT,
			embedding        BLOB,
			embedding_model  TEXT,
			archived         INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, id)
		);`, s.shadow),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec(doc_id);`, s.vtable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
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
	return nil, fmt.Errorf("sqlitevec: embedder is required")
}

func (s *Store) dataset(options *vectorstores.Options) string {
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

func encodeMeta(metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMeta(metaJSON string) (map[string]interface{}, error) {
	if metaJSON == "" {
		return map[string]interface{}{}, nil
	}
	metaMap := map[string]interface{}{}
	if err := json.Unmarshal([]byte(metaJSON), &metaMap); err != nil {
		return nil, err
	}
	return metaMap, nil
}

// ensurePragmas appends WAL and busy-timeout pragmas to file DSNs when
// missing; in-memory databases are left alone.
func ensurePragmas(dsn string) string {
	lower := strings.ToLower(dsn)
	if dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return dsn
	}
	if !strings.Contains(lower, "_pragma=journal_mode") {
		dsn = addPragma(dsn, "journal_mode(WAL)")
	}
	if !strings.Contains(lower, "_pragma=busy_timeout") {
		dsn = addPragma(dsn, fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	}
	return dsn
}

func addPragma(dsn, pragma string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + pragma
}
