// Package reconciler keeps a persistent vector index consistent with the
// current content of a document location, computing and applying the minimal
// set of insertions and removals using content fingerprints as the unit of
// change detection.
package reconciler

import (
	"policyrag/document"
	"policyrag/manifest"
)

// Status classifies a document after reconciliation.
type Status int

const (
	// StatusNew marks a document with no prior manifest entry.
	StatusNew Status = iota
	// StatusUpdated marks a document whose chunk set changed.
	StatusUpdated
	// StatusUnchanged marks a document whose chunk set is identical.
	StatusUnchanged
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusUpdated:
		return "updated"
	case StatusUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// Result describes the minimal index mutation that brings one document in
// sync. Applying it is the caller's responsibility: remove index entries
// matching ToRemove fingerprints, insert ToAdd chunks, and only then replace
// the document's manifest entry wholesale.
type Result struct {
	Source string
	Status Status
	// ToAdd holds chunks absent from the stored entry, in sequence order.
	ToAdd document.Chunks
	// ToRemove holds fingerprints no longer present in the document.
	ToRemove []string
	// Unchanged counts fingerprints present both before and after; those
	// chunks are never re-embedded or re-inserted.
	Unchanged int
}

// ComputeChunks fingerprints a document's ordered segments into its chunk
// sequence. It is a pure function of the input: identical segments always
// yield identical fingerprints, independent of run order or prior state.
// Malformed segments pass through as opaque text.
func ComputeChunks(source string, segments []document.Segment) document.Chunks {
	type occurrence struct {
		page    int
		section string
		text    string
	}
	seen := make(map[occurrence]int, len(segments))
	chunks := make(document.Chunks, 0, len(segments))
	for _, segment := range segments {
		key := occurrence{page: segment.Page, section: segment.Section, text: segment.Text}
		seq := seen[key]
		seen[key] = seq + 1
		position := document.Position{Page: segment.Page, Section: segment.Section, Seq: seq}
		chunks = append(chunks, document.NewChunk(source, segment.Text, position))
	}
	return chunks
}

// Reconcile diffs a document's current chunk sequence against its stored
// manifest entry and returns the minimal mutation. Fingerprints present in
// both sets are untouched, so the cost of applying a Result is proportional
// to the symmetric difference of the chunk sets, not to document size.
// A nil prev means the document was never processed and classifies it as new.
// Duplicate fingerprints within newChunks collapse to one logical chunk.
func Reconcile(source string, newChunks document.Chunks, prev *manifest.Entry) Result {
	previous := prev.Fingerprints()
	old := make(map[string]bool, len(previous))
	for _, fingerprint := range previous {
		old[fingerprint] = true
	}
	current := newChunks.ByFingerprint()

	result := Result{Source: source}
	for _, fingerprint := range newChunks.Fingerprints() {
		if old[fingerprint] {
			result.Unchanged++
			continue
		}
		result.ToAdd = append(result.ToAdd, current[fingerprint])
	}
	for _, fingerprint := range previous {
		if _, ok := current[fingerprint]; !ok {
			result.ToRemove = append(result.ToRemove, fingerprint)
		}
	}
	switch {
	case prev == nil:
		result.Status = StatusNew
	case len(result.ToAdd) == 0 && len(result.ToRemove) == 0:
		result.Status = StatusUnchanged
	default:
		result.Status = StatusUpdated
	}
	return result
}
