package mcp

import (
	"context"
	"fmt"

	"policyrag/vectordb/meta"
)

func (h *Handler) search(ctx context.Context, in *SearchInput) (*SearchOutput, error) {
	if h == nil || h.service == nil {
		return nil, fmt.Errorf("mcp: service unavailable")
	}
	if in == nil {
		in = &SearchInput{}
	}
	if in.Query == "" {
		return nil, fmt.Errorf("mcp: missing query")
	}
	docs, err := h.service.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	results := make([]SearchMatch, 0, len(docs))
	for _, doc := range docs {
		results = append(results, SearchMatch{
			Source:  meta.GetString(doc.Metadata, meta.SourceKey),
			Page:    meta.GetInt(doc.Metadata, meta.PageKey),
			Section: meta.GetString(doc.Metadata, meta.SectionKey),
			Score:   doc.Score,
			Content: doc.PageContent,
		})
	}
	return &SearchOutput{Results: results}, nil
}

func (h *Handler) ask(ctx context.Context, in *AskInput) (*AskOutput, error) {
	if h == nil || h.service == nil {
		return nil, fmt.Errorf("mcp: service unavailable")
	}
	if in == nil {
		in = &AskInput{}
	}
	if in.Question == "" {
		return nil, fmt.Errorf("mcp: missing question")
	}
	answer, err := h.service.Ask(ctx, in.Question, in.History)
	if err != nil {
		return nil, err
	}
	return &AskOutput{Answer: answer.Text, Sources: answer.Sources}, nil
}

func (h *Handler) status(ctx context.Context, _ *StatusInput) (*StatusOutput, error) {
	if h == nil || h.service == nil {
		return nil, fmt.Errorf("mcp: service unavailable")
	}
	status, err := h.service.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusOutput{Status: status}, nil
}
