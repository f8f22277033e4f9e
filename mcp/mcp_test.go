package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"policyrag/llm"
	"policyrag/service"
)

type stubLLM struct {
	answer string
	calls  int
}

func (s *stubLLM) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	s.calls++
	return s.answer, nil
}

func newTestHandler(t *testing.T, chat llm.Client) *Handler {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"leave_policy.md":  "# Leave Policy\n\nEmployees accrue 20 vacation days per year. Unused days roll over up to 5.\n",
		"travel_policy.md": "# Travel Policy\n\nFlights over 500 USD require manager approval before booking.\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	cfg := &service.Config{
		Corpus:    service.CorpusConfig{Location: dir},
		Embedding: service.ProviderConfig{Provider: "simple"},
	}
	var opts []service.Option
	if chat != nil {
		opts = append(opts, service.WithLLMClient(chat))
	}
	svc, err := service.New(cfg, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	if _, err := svc.Process(context.Background(), ""); err != nil {
		t.Fatalf("process corpus: %v", err)
	}
	return &Handler{service: svc}
}

func TestHandlerSearch(t *testing.T) {
	h := newTestHandler(t, nil)
	out, err := h.search(context.Background(), &SearchInput{Query: "vacation days roll over", Limit: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out.Results) == 0 {
		t.Fatalf("expected matches")
	}
	if len(out.Results) > 3 {
		t.Fatalf("expected at most 3 matches, got %d", len(out.Results))
	}
	sectioned := false
	for _, match := range out.Results {
		if !strings.HasSuffix(match.Source, "_policy.md") {
			t.Fatalf("unexpected source %q", match.Source)
		}
		if match.Content == "" {
			t.Fatalf("expected chunk content")
		}
		if match.Section != "" {
			sectioned = true
		}
	}
	if !sectioned {
		t.Fatalf("expected section metadata on markdown matches")
	}
}

func TestHandlerSearchValidation(t *testing.T) {
	h := newTestHandler(t, nil)
	if _, err := h.search(context.Background(), &SearchInput{}); err == nil || !strings.Contains(err.Error(), "missing query") {
		t.Fatalf("expected missing query error, got %v", err)
	}
	if _, err := h.search(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "missing query") {
		t.Fatalf("expected missing query error for nil input, got %v", err)
	}
	var unavailable *Handler
	if _, err := unavailable.search(context.Background(), &SearchInput{Query: "x"}); err == nil || !strings.Contains(err.Error(), "service unavailable") {
		t.Fatalf("expected service unavailable error, got %v", err)
	}
}

func TestHandlerAsk(t *testing.T) {
	chat := &stubLLM{answer: "Twenty days per year."}
	h := newTestHandler(t, chat)
	out, err := h.ask(context.Background(), &AskInput{Question: "How many vacation days do employees get?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if out.Answer != "Twenty days per year." {
		t.Fatalf("unexpected answer %q", out.Answer)
	}
	if len(out.Sources) == 0 {
		t.Fatalf("expected sources")
	}
	if chat.calls != 1 {
		t.Fatalf("expected one chat call, got %d", chat.calls)
	}
}

func TestHandlerAskValidation(t *testing.T) {
	h := newTestHandler(t, &stubLLM{answer: "ok"})
	if _, err := h.ask(context.Background(), &AskInput{}); err == nil || !strings.Contains(err.Error(), "missing question") {
		t.Fatalf("expected missing question error, got %v", err)
	}

	noLLM := newTestHandler(t, nil)
	if _, err := noLLM.ask(context.Background(), &AskInput{Question: "anything"}); err == nil || !strings.Contains(err.Error(), "llm provider is not configured") {
		t.Fatalf("expected unconfigured llm error, got %v", err)
	}
}

func TestHandlerStatus(t *testing.T) {
	h := newTestHandler(t, nil)
	out, err := h.status(context.Background(), &StatusInput{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if out.Status == nil {
		t.Fatalf("expected status payload")
	}
	if out.Status.TotalDocuments != 2 {
		t.Fatalf("expected 2 documents, got %d", out.Status.TotalDocuments)
	}
	if out.Status.TotalChunks == 0 {
		t.Fatalf("expected indexed chunks")
	}
	for _, doc := range out.Status.Documents {
		if !strings.HasSuffix(doc.Path, "_policy.md") {
			t.Fatalf("unexpected document %q", doc.Path)
		}
		if doc.Chunks == 0 {
			t.Fatalf("expected chunks for %s", doc.Path)
		}
	}
}

func TestToolResult(t *testing.T) {
	payload := &SearchOutput{Results: []SearchMatch{{Source: "a.md", Score: 0.9, Content: "text"}}}
	result, jerr := toolResult(payload)
	if jerr != nil {
		t.Fatalf("unexpected error: %v", jerr)
	}
	if len(result.Content) != 1 {
		t.Fatalf("expected one content element, got %d", len(result.Content))
	}
	if result.StructuredContent["result"] == nil {
		t.Fatalf("expected structured result payload")
	}
}

func TestToolDescriptions(t *testing.T) {
	for name, desc := range map[string]string{
		"policy_search": descSearch,
		"policy_ask":    descAsk,
		"policy_status": descStatus,
	} {
		if strings.TrimSpace(desc) == "" {
			t.Fatalf("empty description for %s", name)
		}
	}
}
