package mcp

import (
	"policyrag/assistant"
	"policyrag/service"
)

// SearchInput requests a similarity search over the indexed corpus.
type SearchInput struct {
	// Query is the natural language search query.
	Query string `json:"query"`
	// Limit caps the number of matches returned (default 5).
	Limit int `json:"limit,omitempty"`
}

// SearchMatch is one scored chunk returned by policy_search.
type SearchMatch struct {
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Section string  `json:"section,omitempty"`
	Score   float32 `json:"score"`
	Content string  `json:"content"`
}

// SearchOutput lists matches ordered by descending similarity.
type SearchOutput struct {
	Results []SearchMatch `json:"results"`
}

// AskInput requests a grounded answer from the configured LLM.
type AskInput struct {
	// Question is the user question to answer from the corpus.
	Question string `json:"question"`
	// History carries prior conversation turns for follow-up questions.
	History []assistant.Turn `json:"history,omitempty"`
}

// AskOutput carries the generated answer and its supporting sources.
type AskOutput struct {
	Answer  string             `json:"answer"`
	Sources []assistant.Source `json:"sources,omitempty"`
}

// StatusInput requests the corpus processing status.
type StatusInput struct{}

// StatusOutput reports per-document chunk counts from the manifest.
type StatusOutput struct {
	Status *service.Status `json:"status"`
}
