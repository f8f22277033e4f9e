package sqlitevec

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"policyrag/document"
	"policyrag/embeddings"
	"policyrag/schema"
	"policyrag/vectordb/meta"
	"policyrag/vectorstores"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "policies.db")
	store, err := NewStore(append([]Option{WithDSN(dsn), WithEmbedder(embeddings.NewSimpleEmbedder(32))}, opts...)...)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func chunkDoc(source, content string) schema.Document {
	chunk := document.NewChunk(source, content, document.Position{})
	return chunk.NewDocument()
}

func rowCount(t *testing.T, store *Store, dataset string) int {
	t.Helper()
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE dataset_id = ?`, store.shadow)
	if err := store.db.QueryRow(query, dataset).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestStore_AddSearchDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	docs := []schema.Document{
		chunkDoc("/corpus/vacation.txt", "Vacation policy grants fifteen days."),
		chunkDoc("/corpus/sick.txt", "Sick leave requires a doctor's note."),
		chunkDoc("/corpus/travel.txt", "Travel needs director approval."),
	}
	ids, err := store.AddDocuments(ctx, docs)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if want := meta.GetString(docs[0].Metadata, meta.FingerprintKey); ids[0] != want {
		t.Errorf("expected id %v, got %v", want, ids[0])
	}
	if got := rowCount(t, store, defaultNamespace); got != 3 {
		t.Fatalf("expected 3 rows, got %d", got)
	}

	results, err := store.SimilaritySearch(ctx, "Sick leave requires a doctor's note.", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].PageContent != docs[1].PageContent {
		t.Errorf("expected sick leave chunk, got %q", results[0].PageContent)
	}
	if got := meta.GetString(results[0].Metadata, meta.SourceKey); got != "/corpus/sick.txt" {
		t.Errorf("expected source metadata, got %q", got)
	}

	sickFingerprint := meta.GetString(docs[1].Metadata, meta.FingerprintKey)
	if err := store.DeleteByFingerprints(ctx, []string{sickFingerprint, "no-such-fingerprint"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := rowCount(t, store, defaultNamespace); got != 2 {
		t.Fatalf("expected 2 rows after delete, got %d", got)
	}
	results, err = store.SimilaritySearch(ctx, "Sick leave requires a doctor's note.", 3)
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	for _, result := range results {
		if result.PageContent == docs[1].PageContent {
			t.Errorf("deleted chunk still returned")
		}
	}
	// deleting again is a no-op
	if err := store.DeleteByFingerprints(ctx, []string{sickFingerprint}); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestStore_UpsertByFingerprint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	doc := chunkDoc("/corpus/vacation.txt", "Vacation policy grants fifteen days.")
	if _, err := store.AddDocuments(ctx, []schema.Document{doc}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.AddDocuments(ctx, []schema.Document{doc}); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if got := rowCount(t, store, defaultNamespace); got != 1 {
		t.Fatalf("expected 1 row after re-add, got %d", got)
	}
}

func TestStore_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	hrDoc := chunkDoc("/hr/vacation.txt", "Vacation policy grants fifteen days.")
	financeDoc := chunkDoc("/finance/expense.txt", "Expense reports are due monthly.")
	if _, err := store.AddDocuments(ctx, []schema.Document{hrDoc}, vectorstores.WithNameSpace("hr")); err != nil {
		t.Fatalf("add hr: %v", err)
	}
	if _, err := store.AddDocuments(ctx, []schema.Document{financeDoc}, vectorstores.WithNameSpace("finance")); err != nil {
		t.Fatalf("add finance: %v", err)
	}

	results, err := store.SimilaritySearch(ctx, "Expense reports are due monthly.", 5, vectorstores.WithNameSpace("hr"))
	if err != nil {
		t.Fatalf("search hr: %v", err)
	}
	for _, result := range results {
		if result.PageContent == financeDoc.PageContent {
			t.Errorf("finance chunk leaked into hr namespace")
		}
	}

	fingerprint := meta.GetString(hrDoc.Metadata, meta.FingerprintKey)
	if err := store.DeleteByFingerprints(ctx, []string{fingerprint}, vectorstores.WithNameSpace("finance")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := rowCount(t, store, "hr"); got != 1 {
		t.Fatalf("delete in finance namespace touched hr rows: %d", got)
	}
}

func TestStore_ReopenFindsRows(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "policies.db")
	embedder := embeddings.NewSimpleEmbedder(32)

	store, err := NewStore(WithDSN(dsn), WithEmbedder(embedder))
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	doc := chunkDoc("/corpus/travel.txt", "Travel needs director approval.")
	if _, err := store.AddDocuments(ctx, []schema.Document{doc}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(WithDSN(dsn), WithEmbedder(embedder))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	results, err := reopened.SimilaritySearch(ctx, "Travel needs director approval.", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].PageContent != doc.PageContent {
		t.Fatalf("expected persisted chunk after reopen, got %v", results)
	}
}

func TestStore_EmbedderResolution(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "policies.db")
	store, err := NewStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer store.Close()

	doc := chunkDoc("/corpus/vacation.txt", "Vacation policy grants fifteen days.")
	if _, err := store.AddDocuments(ctx, []schema.Document{doc}); err == nil {
		t.Fatalf("expected error without embedder")
	}
	_, err = store.AddDocuments(ctx, []schema.Document{doc}, vectorstores.WithEmbedder(embeddings.NewSimpleEmbedder(32)))
	if err != nil {
		t.Fatalf("per-call embedder: %v", err)
	}
}

func TestStore_RejectsMissingFingerprint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.AddDocuments(ctx, []schema.Document{{PageContent: "orphan chunk"}})
	if err == nil {
		t.Fatalf("expected error for document without fingerprint")
	}
}

func TestNewStore_RequiresDSN(t *testing.T) {
	if _, err := NewStore(); err == nil {
		t.Fatalf("expected error without dsn or db")
	}
}

func TestStore_EmptyAddIsNoop(t *testing.T) {
	store := newTestStore(t)
	ids, err := store.AddDocuments(context.Background(), nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ids != nil {
		t.Fatalf("expected nil ids, got %v", ids)
	}
}
