package schema

// Document is a retrievable text chunk with provenance metadata and an
// optional similarity score. It is the minimal shape shared between the
// reconciler, the vector backends and the answer surface.
type Document struct {
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	// Score is populated by similarity search.
	Score float32 `json:"score,omitempty"`
}
