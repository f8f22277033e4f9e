package document

import (
	"testing"

	"policyrag/vectordb/meta"
)

func TestFingerprint_Deterministic(t *testing.T) {
	position := Position{Page: 2, Section: "Leave Policy", Seq: 0}
	first := Fingerprint(position, "Annual leave: 20 days")
	second := Fingerprint(position, "Annual leave: 20 days")
	if first != second {
		t.Fatalf("expected stable fingerprint, got %v and %v", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 256-bit hex fingerprint, got %d chars", len(first))
	}
}

func TestFingerprint_Sensitivity(t *testing.T) {
	base := Position{Page: 1, Section: "Travel", Seq: 0}
	reference := Fingerprint(base, "Meal allowance is $50 per day")
	tests := []struct {
		name     string
		position Position
		content  string
	}{
		{name: "content change", position: base, content: "Meal allowance is $60 per day"},
		{name: "page change", position: Position{Page: 2, Section: "Travel", Seq: 0}, content: "Meal allowance is $50 per day"},
		{name: "section change", position: Position{Page: 1, Section: "Expenses", Seq: 0}, content: "Meal allowance is $50 per day"},
		{name: "seq change", position: Position{Page: 1, Section: "Travel", Seq: 1}, content: "Meal allowance is $50 per day"},
	}
	for _, tc := range tests {
		if got := Fingerprint(tc.position, tc.content); got == reference {
			t.Errorf("%v: expected fingerprint to change", tc.name)
		}
	}
}

func TestCanonical(t *testing.T) {
	got := Canonical(Position{Page: 3, Section: "Benefits", Seq: 2}, "text")
	want := "page:3|section:Benefits|seq:2|text"
	if got != want {
		t.Fatalf("canonical form mismatch: got %q want %q", got, want)
	}
}

func TestChunks_Fingerprints_Dedupe(t *testing.T) {
	position := Position{Page: 1}
	chunks := Chunks{
		NewChunk("hr.pdf", "alpha", position),
		NewChunk("hr.pdf", "beta", position),
		NewChunk("hr.pdf", "alpha", position),
	}
	fingerprints := chunks.Fingerprints()
	if len(fingerprints) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 fingerprints, got %d", len(fingerprints))
	}
	if fingerprints[0] != chunks[0].Fingerprint || fingerprints[1] != chunks[1].Fingerprint {
		t.Fatalf("expected sequence order preserved, got %v", fingerprints)
	}
	byFingerprint := chunks.ByFingerprint()
	if len(byFingerprint) != 2 {
		t.Fatalf("expected 2 distinct chunks, got %d", len(byFingerprint))
	}
}

func TestChunk_NewDocument(t *testing.T) {
	chunk := NewChunk("policies/hr.pdf", "Sick leave requires a certificate", Position{Page: 4, Section: "Sick Leave", Seq: 0})
	doc := chunk.NewDocument()
	if doc.PageContent != chunk.Content {
		t.Fatalf("expected content carried over, got %q", doc.PageContent)
	}
	if got := meta.GetString(doc.Metadata, meta.SourceKey); got != "policies/hr.pdf" {
		t.Fatalf("unexpected source: %q", got)
	}
	if got := meta.GetString(doc.Metadata, meta.FingerprintKey); got != chunk.Fingerprint {
		t.Fatalf("unexpected fingerprint: %q", got)
	}
	if got := meta.GetInt(doc.Metadata, meta.PageKey); got != 4 {
		t.Fatalf("unexpected page: %d", got)
	}
}
