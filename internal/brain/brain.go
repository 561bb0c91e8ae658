// Package brain defines the generation-engine contract and an
// OpenAI-compatible chat-completions client implementing it.
package brain

import "context"

// Analysis is the structured output of the analysis stage.
type Analysis struct {
	Keywords  []string
	MainTopic string
	Domain    string
	Question  string
}

// Engine is the generation contract. Implementations must not retry on their
// own; retry policy belongs to the caller.
type Engine interface {
	// Analyze extracts keywords, topic, domain and the implied question
	// from a prompt.
	Analyze(ctx context.Context, prompt string) (Analysis, error)
	// Generate returns free text for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Model identifies the underlying model for generation metadata.
	Model() string
}
