package embeddings

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	docTexts []string
	queries  int
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, docs []string) ([][]float32, error) {
	c.docTexts = append(c.docTexts, docs...)
	out := make([][]float32, len(docs))
	for i, s := range docs {
		out[i] = embedString(s, 8)
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, q string) ([]float32, error) {
	c.queries++
	return embedString(q, 8), nil
}

func TestCache_EmbedQueryMemoizes(t *testing.T) {
	delegate := &countingEmbedder{}
	cache := NewCache(delegate, 8)
	ctx := context.Background()

	first, err := cache.EmbedQuery(ctx, "how many vacation days")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := cache.EmbedQuery(ctx, "how many vacation days")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if delegate.queries != 1 {
		t.Fatalf("expected a single delegate call, got %d", delegate.queries)
	}
	if len(first) != len(second) {
		t.Fatalf("vector length changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	delegate := &countingEmbedder{}
	cache := NewCache(delegate, 8)
	ctx := context.Background()

	if _, err := cache.EmbedQuery(ctx, "sick leave"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	vec, err := cache.EmbedQuery(ctx, "sick leave")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	vec[0] = -1
	again, err := cache.EmbedQuery(ctx, "sick leave")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if again[0] == -1 {
		t.Fatalf("caller mutation leaked into the cache")
	}
}

func TestCache_EmbedDocumentsSkipsHitsAndDuplicates(t *testing.T) {
	delegate := &countingEmbedder{}
	cache := NewCache(delegate, 8)
	ctx := context.Background()

	out, err := cache.EmbedDocuments(ctx, []string{"remote work", "expenses", "remote work"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(out))
	}
	if len(delegate.docTexts) != 2 {
		t.Fatalf("expected 2 delegate texts, got %v", delegate.docTexts)
	}
	for i := range out[0] {
		if out[0][i] != out[2][i] {
			t.Fatalf("duplicate texts embedded differently at %d", i)
		}
	}

	if _, err := cache.EmbedDocuments(ctx, []string{"expenses", "travel"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(delegate.docTexts) != 3 || delegate.docTexts[2] != "travel" {
		t.Fatalf("expected only the miss to reach the delegate, got %v", delegate.docTexts)
	}
}

func TestCache_SharesEntriesAcrossQueryAndDocuments(t *testing.T) {
	delegate := &countingEmbedder{}
	cache := NewCache(delegate, 8)
	ctx := context.Background()

	if _, err := cache.EmbedDocuments(ctx, []string{"pto policy"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := cache.EmbedQuery(ctx, "pto policy"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if delegate.queries != 0 {
		t.Fatalf("expected query to hit the document entry, got %d delegate calls", delegate.queries)
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	delegate := &countingEmbedder{}
	cache := NewCache(delegate, 2)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "a", "c", "b"} {
		if _, err := cache.EmbedQuery(ctx, q); err != nil {
			t.Fatalf("embed %q: %v", q, err)
		}
	}
	// a, b miss; a hits; c misses and evicts b; b misses again.
	if delegate.queries != 4 {
		t.Fatalf("expected 4 delegate calls, got %d", delegate.queries)
	}
}
