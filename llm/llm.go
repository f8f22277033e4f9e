// Package llm defines the chat-completion contract the answer surface uses,
// with providers under llm/openai and llm/ollama.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client generates a completion for a conversation.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts ...Option) (string, error)
}

// Option applies per-call overrides to Options.
type Option func(*Options)

// Options collects per-call generation parameters; unset fields keep the
// provider defaults.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// WithModel overrides the model for one call.
func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(temperature float64) Option {
	return func(o *Options) { o.Temperature = temperature }
}

// WithMaxTokens caps the completion length for one call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		if maxTokens > 0 {
			o.MaxTokens = maxTokens
		}
	}
}
