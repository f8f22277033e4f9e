// Package assistant answers questions over the indexed policy corpus:
// retrieve the closest chunks, stuff them into a grounded prompt and ask the
// configured chat model. Conversation history is caller-owned and passed into
// each call; the assistant keeps no session state.
package assistant

import (
	"context"
	"fmt"
	"path"
	"strings"

	"policyrag/llm"
	"policyrag/schema"
	"policyrag/vectordb"
	"policyrag/vectordb/meta"
	"policyrag/vectorstores"
)

const (
	defaultTopK = 5

	defaultInstructions = `You answer questions about company policy documents.
Use only the policy excerpts provided below. If the excerpts do not contain
the answer, say you do not know; never invent policy. When you rely on an
excerpt, name its source document.`

	noMatchAnswer = "No policy content matched the question."
)

// Turn is one completed question/answer exchange of a conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Source identifies a chunk an answer drew on.
type Source struct {
	Path    string  `json:"path"`
	Page    int     `json:"page,omitempty"`
	Section string  `json:"section,omitempty"`
	Score   float32 `json:"score"`
}

// Answer is the generated text plus the chunks it was grounded on.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Assistant wires a vector index to a chat model.
type Assistant struct {
	index         vectordb.Index
	client        llm.Client
	topK          int
	instructions  string
	searchOptions []vectorstores.Option
}

// Option configures the assistant.
type Option func(*Assistant)

// WithTopK sets how many chunks are retrieved per question (default 5).
func WithTopK(topK int) Option {
	return func(a *Assistant) {
		if topK > 0 {
			a.topK = topK
		}
	}
}

// WithInstructions replaces the grounding preamble of the prompt.
func WithInstructions(instructions string) Option {
	return func(a *Assistant) {
		if instructions != "" {
			a.instructions = instructions
		}
	}
}

// WithSearchOptions sets options passed to every similarity search, e.g. a
// namespace or a minimum score.
func WithSearchOptions(opts ...vectorstores.Option) Option {
	return func(a *Assistant) { a.searchOptions = opts }
}

// New creates an Assistant.
func New(index vectordb.Index, client llm.Client, opts ...Option) *Assistant {
	a := &Assistant{
		index:        index,
		client:       client,
		topK:         defaultTopK,
		instructions: defaultInstructions,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask retrieves the chunks closest to question, builds a grounded prompt that
// carries the prior turns, and returns the model answer with its sources.
func (a *Assistant) Ask(ctx context.Context, question string, history []Turn) (*Answer, error) {
	docs, err := a.index.SimilaritySearch(ctx, question, a.topK, a.searchOptions...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(docs) == 0 {
		return &Answer{Text: noMatchAnswer}, nil
	}

	messages := make([]llm.Message, 0, 2*len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt(docs)})
	for _, turn := range history {
		if turn.Question == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: turn.Question})
		if turn.Answer != "" {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: turn.Answer})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	text, err := a.client.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &Answer{Text: strings.TrimSpace(text), Sources: collectSources(docs)}, nil
}

func (a *Assistant) systemPrompt(docs []schema.Document) string {
	var sb strings.Builder
	sb.WriteString(a.instructions)
	sb.WriteString("\n\nPolicy excerpts:\n")
	for i, doc := range docs {
		sb.WriteString(fmt.Sprintf("\n[%d] %s\n", i+1, describeChunk(doc)))
		sb.WriteString(doc.PageContent)
		sb.WriteString("\n")
	}
	return sb.String()
}

func describeChunk(doc schema.Document) string {
	source := meta.GetString(doc.Metadata, meta.SourceKey)
	parts := []string{path.Base(source)}
	if page := meta.GetInt(doc.Metadata, meta.PageKey); page > 0 {
		parts = append(parts, fmt.Sprintf("page %d", page))
	}
	if section := meta.GetString(doc.Metadata, meta.SectionKey); section != "" {
		parts = append(parts, section)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// collectSources dedupes chunks that cite the same place, keeping the best
// score and the retrieval order of first appearance.
func collectSources(docs []schema.Document) []Source {
	var sources []Source
	index := map[string]int{}
	for _, doc := range docs {
		source := Source{
			Path:    meta.GetString(doc.Metadata, meta.SourceKey),
			Page:    meta.GetInt(doc.Metadata, meta.PageKey),
			Section: meta.GetString(doc.Metadata, meta.SectionKey),
			Score:   doc.Score,
		}
		key := fmt.Sprintf("%s|%d|%s", source.Path, source.Page, source.Section)
		if at, ok := index[key]; ok {
			if source.Score > sources[at].Score {
				sources[at].Score = source.Score
			}
			continue
		}
		index[key] = len(sources)
		sources = append(sources, source)
	}
	return sources
}
