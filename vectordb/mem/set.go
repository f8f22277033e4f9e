package mem

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/bintly"

	"policyrag/embeddings"
	"policyrag/schema"
	"policyrag/vectordb"
	"policyrag/vectordb/meta"
	"policyrag/vectordb/storage"
	"policyrag/vectordb/storage/memstore"
	"policyrag/vectordb/storage/mmapstore"
)

type entry struct {
	document schema.Document
	vector   []float32
	ptr      storage.Ptr
	external bool
}

// Set holds the chunks of one namespace, keyed by fingerprint, with an
// optional bintly snapshot under the store's base location. With external
// values enabled chunk text lives in an append-only value store next to the
// snapshot and only vectors and metadata stay on the heap.
type Set struct {
	baseURL     string
	name        string
	fs          afs.Service
	external    bool
	segmentSize int64
	values      storage.ValueStore
	mu          sync.RWMutex
	entries     map[string]*entry
}

func newSet(ctx context.Context, baseURL, name string, options ...SetOption) (*Set, error) {
	ret := &Set{
		baseURL: baseURL,
		name:    name,
		fs:      afs.New(),
		entries: make(map[string]*entry),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.values != nil {
		ret.external = true
	}
	if ret.external {
		if err := ret.openValues(); err != nil {
			return nil, err
		}
	}
	if baseURL == "" {
		return ret, nil
	}
	if err := ret.load(ctx); err != nil {
		return nil, err
	}
	return ret, nil
}

// openValues opens the payload store backing external entries: segment files
// next to the snapshot for file locations, an in-memory buffer otherwise.
func (s *Set) openValues() error {
	if s.values != nil {
		return nil
	}
	if s.baseURL == "" {
		s.values = memstore.New()
		return nil
	}
	if url.Scheme(s.baseURL, "file") != "file" {
		return fmt.Errorf("external values require a file location, got %v", s.baseURL)
	}
	values, err := mmapstore.Open(filepath.Join(url.Path(s.baseURL), s.name+".values"),
		mmapstore.WithSegmentSize(s.segmentSize))
	if err != nil {
		return err
	}
	s.values = values
	return nil
}

// close releases the payload store when one is open.
func (s *Set) close() error {
	if s.values == nil {
		return nil
	}
	return s.values.Close()
}

func (s *Set) snapshotURL() string {
	return url.Join(s.baseURL, s.name+".bin")
}

// load restores the snapshot when one exists.
func (s *Set) load(ctx context.Context) error {
	URL := s.snapshotURL()
	exists, _ := s.fs.Exists(ctx, URL)
	if !exists {
		return nil
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to read snapshot %v: %w", URL, err)
	}
	readers := bintly.NewReaders()
	reader := readers.Get()
	defer readers.Put(reader)
	if err := reader.FromBytes(data); err != nil {
		return fmt.Errorf("failed to decode snapshot %v: %w", URL, err)
	}
	var count int
	reader.Int(&count)
	for i := 0; i < count; i++ {
		doc := &vectordb.Document{}
		if err := doc.DecodeBinary(reader); err != nil {
			return fmt.Errorf("failed to decode snapshot %v: %w", URL, err)
		}
		var external int
		reader.Int(&external)
		var ptr storage.Ptr
		if external == 1 {
			var segmentID, offset, length int
			reader.Int(&segmentID)
			reader.Int(&offset)
			reader.Int(&length)
			ptr = storage.Ptr{SegmentID: uint32(segmentID), Offset: uint64(offset), Length: uint32(length)}
			if err := s.openValues(); err != nil {
				return err
			}
		}
		var dim int
		reader.Int(&dim)
		vector := make([]float32, dim)
		for j := 0; j < dim; j++ {
			reader.Float32(&vector[j])
		}
		fingerprint := meta.GetString(doc.Metadata, meta.FingerprintKey)
		if fingerprint == "" {
			continue
		}
		s.entries[fingerprint] = &entry{document: schema.Document(*doc), vector: vector, ptr: ptr, external: external == 1}
	}
	return nil
}

// persist writes the snapshot, fingerprint-sorted so identical content yields
// identical bytes. External payloads are flushed first so every pointer in
// the snapshot references durable bytes.
func (s *Set) persist(ctx context.Context) error {
	if s.baseURL == "" {
		return nil
	}
	if s.values != nil {
		if err := s.values.Sync(); err != nil {
			return fmt.Errorf("failed to sync values: %w", err)
		}
	}
	s.mu.RLock()
	fingerprints := make([]string, 0, len(s.entries))
	for fingerprint := range s.entries {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)

	writers := bintly.NewWriters()
	writer := writers.Get()
	defer writers.Put(writer)
	writer.Int(len(fingerprints))
	for _, fingerprint := range fingerprints {
		item := s.entries[fingerprint]
		doc := vectordb.Document(item.document)
		if err := doc.EncodeBinary(writer); err != nil {
			s.mu.RUnlock()
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		if item.external {
			writer.Int(1)
			writer.Int(int(item.ptr.SegmentID))
			writer.Int(int(item.ptr.Offset))
			writer.Int(int(item.ptr.Length))
		} else {
			writer.Int(0)
		}
		writer.Int(len(item.vector))
		for _, value := range item.vector {
			writer.Float32(value)
		}
	}
	s.mu.RUnlock()
	if err := s.fs.Upload(ctx, s.snapshotURL(), file.DefaultFileOsMode, bytes.NewReader(writer.Bytes())); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

// add upserts documents keyed by their fingerprint metadata.
func (s *Set) add(ctx context.Context, docs []schema.Document, embedder embeddings.Embedder) ([]string, error) {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors, expected %d", len(vectors), len(docs))
	}
	ids := make([]string, 0, len(docs))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range docs {
		fingerprint := meta.GetString(doc.Metadata, meta.FingerprintKey)
		if fingerprint == "" {
			return nil, fmt.Errorf("document %d has no fingerprint metadata", i)
		}
		if existing, ok := s.entries[fingerprint]; ok && existing.external && s.values != nil {
			_ = s.values.Delete(existing.ptr)
		}
		item := &entry{document: doc, vector: vectors[i]}
		if s.external {
			ptr, err := s.values.Append([]byte(doc.PageContent))
			if err != nil {
				return nil, fmt.Errorf("failed to store value: %w", err)
			}
			item.document.PageContent = ""
			item.ptr = ptr
			item.external = true
		}
		s.entries[fingerprint] = item
		ids = append(ids, fingerprint)
	}
	return ids, nil
}

// deleteByFingerprints drops entries; absent fingerprints are ignored.
// External payloads get a tombstone so compaction can reclaim them.
func (s *Set) deleteByFingerprints(fingerprints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fingerprint := range fingerprints {
		if item, ok := s.entries[fingerprint]; ok && item.external && s.values != nil {
			_ = s.values.Delete(item.ptr)
		}
		delete(s.entries, fingerprint)
	}
}

// search scores every entry against the query vector and returns the top
// numDocuments, ties broken by fingerprint for stable output.
func (s *Set) search(ctx context.Context, query string, numDocuments int, embedder embeddings.Embedder, minScore float32) ([]schema.Document, error) {
	queryVector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	type scored struct {
		fingerprint string
		document    schema.Document
		score       float32
		ptr         storage.Ptr
		external    bool
	}
	s.mu.RLock()
	candidates := make([]scored, 0, len(s.entries))
	for fingerprint, item := range s.entries {
		score := cosineSimilarity(queryVector, item.vector)
		if minScore > 0 && score < minScore {
			continue
		}
		candidates = append(candidates, scored{
			fingerprint: fingerprint,
			document:    item.document,
			score:       score,
			ptr:         item.ptr,
			external:    item.external,
		})
	}
	s.mu.RUnlock()
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].fingerprint < candidates[j].fingerprint
	})
	if numDocuments > 0 && len(candidates) > numDocuments {
		candidates = candidates[:numDocuments]
	}
	// Only the returned documents pay for payload reads.
	result := make([]schema.Document, 0, len(candidates))
	for _, candidate := range candidates {
		doc := candidate.document
		if candidate.external {
			payload, err := s.values.Read(candidate.ptr)
			if err != nil {
				return nil, fmt.Errorf("failed to read value %v: %w", candidate.fingerprint, err)
			}
			doc.PageContent = string(payload)
		}
		doc.Score = candidate.score
		result = append(result, doc)
	}
	return result, nil
}

func (s *Set) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
