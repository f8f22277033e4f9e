package policyrag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"policyrag/service"
	"policyrag/vectordb/meta"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRetriever_MatchFollowsCorpusChanges(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "leave_policy.md", "# Leave Policy\n\nEmployees accrue 20 vacation days per year.\n")

	svc, err := service.New(&service.Config{
		Embedding: service.ProviderConfig{Provider: "simple"},
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()

	retriever := NewRetriever(svc)
	ctx := context.Background()

	docs, err := retriever.Match(ctx, "vacation days", 3, dir)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(docs) == 0 {
		t.Fatalf("expected matches from the initial corpus")
	}

	// A document added after the first call is picked up by the next one.
	writeDoc(t, dir, "travel_policy.md", "# Travel Policy\n\nBusiness class is allowed on flights over six hours.\n")
	docs, err = retriever.Match(ctx, "business class flights", 10, dir)
	if err != nil {
		t.Fatalf("match after add: %v", err)
	}
	var sawTravel bool
	for _, doc := range docs {
		if strings.HasSuffix(meta.GetString(doc.Metadata, meta.SourceKey), "travel_policy.md") {
			sawTravel = true
		}
	}
	if !sawTravel {
		t.Fatalf("expected the new document in the matches")
	}

	// A removed document stops matching.
	if err := os.Remove(filepath.Join(dir, "leave_policy.md")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	docs, err = retriever.Match(ctx, "vacation days", 10, dir)
	if err != nil {
		t.Fatalf("match after remove: %v", err)
	}
	for _, doc := range docs {
		if strings.HasSuffix(meta.GetString(doc.Metadata, meta.SourceKey), "leave_policy.md") {
			t.Fatalf("expected the removed document to stop matching, got %v", doc.Metadata)
		}
	}
}
