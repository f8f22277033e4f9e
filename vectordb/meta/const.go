package meta

// Metadata keys attached to every indexed chunk. FingerprintKey is the
// deletion predicate used by incremental reconciliation; the remaining keys
// carry provenance for answer citations.
const (
	SourceKey      = "source"
	FingerprintKey = "fingerprint"
	PageKey        = "page"
	SectionKey     = "section"
	SeqKey         = "seq"
)
