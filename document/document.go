package document

import (
	"policyrag/schema"
	"policyrag/vectordb/meta"
)

// Segment is one ordered unit of text produced by a format extractor before
// fingerprinting. Page and Section describe where in the source the text came
// from; both may be zero-valued when the format carries no such structure.
type Segment struct {
	Text    string
	Page    int
	Section string
}

// Position carries the document-local structural context of a chunk. It is
// hashing input for the fingerprint and provenance for citations; retrieval
// logic never interprets it.
type Position struct {
	Page    int    `json:"page"`
	Section string `json:"section,omitempty"`
	// Seq disambiguates chunks that share page, section and content; it is
	// the occurrence index among such duplicates within one document.
	Seq int `json:"seq"`
}

// Chunk is an immutable unit of indexed text owned by one source document.
type Chunk struct {
	Content     string   `json:"content"`
	Source      string   `json:"source"`
	Position    Position `json:"position"`
	Fingerprint string   `json:"fingerprint"`
}

// NewChunk builds a fingerprinted chunk for the supplied source and position.
func NewChunk(source, content string, position Position) Chunk {
	return Chunk{
		Content:     content,
		Source:      source,
		Position:    position,
		Fingerprint: Fingerprint(position, content),
	}
}

// NewDocument converts the chunk into a retrievable schema.Document carrying
// provenance metadata alongside the embedded content.
func (c *Chunk) NewDocument() schema.Document {
	return schema.Document{
		PageContent: c.Content,
		Metadata: map[string]interface{}{
			meta.SourceKey:      c.Source,
			meta.FingerprintKey: c.Fingerprint,
			meta.PageKey:        c.Position.Page,
			meta.SectionKey:     c.Position.Section,
			meta.SeqKey:         c.Position.Seq,
		},
	}
}

// Chunks is an ordered chunk sequence belonging to one document.
type Chunks []Chunk

// ByFingerprint returns the chunks indexed by fingerprint. Duplicate
// fingerprints collapse to the first occurrence.
func (c Chunks) ByFingerprint() map[string]Chunk {
	result := make(map[string]Chunk, len(c))
	for _, chunk := range c {
		if _, ok := result[chunk.Fingerprint]; !ok {
			result[chunk.Fingerprint] = chunk
		}
	}
	return result
}

// Fingerprints returns the distinct fingerprints in sequence order.
func (c Chunks) Fingerprints() []string {
	seen := make(map[string]bool, len(c))
	out := make([]string, 0, len(c))
	for _, chunk := range c {
		if seen[chunk.Fingerprint] {
			continue
		}
		seen[chunk.Fingerprint] = true
		out = append(out, chunk.Fingerprint)
	}
	return out
}

// Documents converts the sequence into schema documents ready for indexing.
func (c Chunks) Documents() []schema.Document {
	docs := make([]schema.Document, 0, len(c))
	for i := range c {
		docs = append(docs, c[i].NewDocument())
	}
	return docs
}
