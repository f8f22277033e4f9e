package assistant

import (
	"context"
	"strings"
	"testing"

	"policyrag/llm"
	"policyrag/schema"
	"policyrag/vectordb/meta"
	"policyrag/vectorstores"
)

type fakeIndex struct {
	docs  []schema.Document
	lastK int
}

func (f *fakeIndex) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteByFingerprints(ctx context.Context, fingerprints []string, opts ...vectorstores.Option) error {
	return nil
}

func (f *fakeIndex) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	f.lastK = numDocuments
	return f.docs, nil
}

type fakeLLM struct {
	messages []llm.Message
	calls    int
	answer   string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	f.calls++
	f.messages = messages
	return f.answer, nil
}

func policyDoc(source, content string, page int, section string, score float32) schema.Document {
	return schema.Document{
		PageContent: content,
		Metadata: map[string]interface{}{
			meta.SourceKey:  source,
			meta.PageKey:    page,
			meta.SectionKey: section,
		},
		Score: score,
	}
}

func TestAssistant_AskGroundsPromptInChunks(t *testing.T) {
	index := &fakeIndex{docs: []schema.Document{
		policyDoc("/corpus/hr_leave_policy.pdf", "Employees receive 15 vacation days per year.", 2, "Leave Entitlements", 0.92),
		policyDoc("/corpus/hr_leave_policy.pdf", "Unused days expire in March.", 3, "Carry Over", 0.81),
	}}
	client := &fakeLLM{answer: "  You get 15 vacation days.\n"}
	a := New(index, client)

	answer, err := a.Ask(context.Background(), "How many vacation days do I get?", nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer.Text != "You get 15 vacation days." {
		t.Errorf("expected trimmed answer, got %q", answer.Text)
	}
	if index.lastK != defaultTopK {
		t.Errorf("expected top-%d retrieval, got %d", defaultTopK, index.lastK)
	}

	if len(client.messages) != 2 {
		t.Fatalf("expected system + question, got %d messages", len(client.messages))
	}
	system := client.messages[0]
	if system.Role != llm.RoleSystem {
		t.Fatalf("expected system message first, got %q", system.Role)
	}
	if !strings.Contains(system.Content, "Employees receive 15 vacation days per year.") {
		t.Errorf("system prompt misses chunk text")
	}
	if !strings.Contains(system.Content, "(hr_leave_policy.pdf, page 2, Leave Entitlements)") {
		t.Errorf("system prompt misses chunk citation: %q", system.Content)
	}
	if last := client.messages[len(client.messages)-1]; last.Role != llm.RoleUser || last.Content != "How many vacation days do I get?" {
		t.Errorf("expected question last, got %+v", last)
	}

	if len(answer.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(answer.Sources))
	}
	if answer.Sources[0].Page != 2 || answer.Sources[0].Section != "Leave Entitlements" {
		t.Errorf("unexpected first source: %+v", answer.Sources[0])
	}
}

func TestAssistant_HistoryBecomesTurns(t *testing.T) {
	index := &fakeIndex{docs: []schema.Document{
		policyDoc("/corpus/travel.pdf", "Flights over $500 need approval.", 1, "", 0.8),
	}}
	client := &fakeLLM{answer: "Yes."}
	a := New(index, client)

	history := []Turn{
		{Question: "What is the travel policy?", Answer: "Travel requires director approval."},
		{Question: "Does that include flights?", Answer: "Yes, all flights."},
	}
	if _, err := a.Ask(context.Background(), "And hotels?", history); err != nil {
		t.Fatalf("ask: %v", err)
	}
	roles := make([]string, len(client.messages))
	for i, message := range client.messages {
		roles[i] = message.Role
	}
	expect := []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}
	if len(roles) != len(expect) {
		t.Fatalf("expected %d messages, got %v", len(expect), roles)
	}
	for i := range expect {
		if roles[i] != expect[i] {
			t.Fatalf("expected roles %v, got %v", expect, roles)
		}
	}
	if client.messages[1].Content != "What is the travel policy?" {
		t.Errorf("history out of order: %q", client.messages[1].Content)
	}
}

func TestAssistant_NoMatchesSkipsModel(t *testing.T) {
	index := &fakeIndex{}
	client := &fakeLLM{answer: "should not be used"}
	a := New(index, client)

	answer, err := a.Ask(context.Background(), "What about llamas?", nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("model called despite empty retrieval")
	}
	if answer.Text != noMatchAnswer || len(answer.Sources) != 0 {
		t.Errorf("unexpected answer: %+v", answer)
	}
}

func TestAssistant_TopKOption(t *testing.T) {
	index := &fakeIndex{docs: []schema.Document{policyDoc("/corpus/a.pdf", "text", 0, "", 0.5)}}
	a := New(index, &fakeLLM{answer: "ok"}, WithTopK(2))
	if _, err := a.Ask(context.Background(), "q", nil); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if index.lastK != 2 {
		t.Errorf("expected top-2 retrieval, got %d", index.lastK)
	}
}

func TestAssistant_SourceDedupe(t *testing.T) {
	index := &fakeIndex{docs: []schema.Document{
		policyDoc("/corpus/comp.pdf", "Band A pays 50k.", 4, "Salary Bands", 0.7),
		policyDoc("/corpus/comp.pdf", "Band B pays 70k.", 4, "Salary Bands", 0.9),
	}}
	a := New(index, &fakeLLM{answer: "ok"})
	answer, err := a.Ask(context.Background(), "salary bands?", nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected deduped source, got %d", len(answer.Sources))
	}
	if answer.Sources[0].Score != 0.9 {
		t.Errorf("expected best score kept, got %v", answer.Sources[0].Score)
	}
}
