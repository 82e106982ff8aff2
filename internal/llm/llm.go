package llm

import "context"

// GenerateParams controls a single completion request.
type GenerateParams struct {
	Temperature float64
	MaxTokens   int
}

// Client defines the interface for text-generation providers.
type Client interface {
	// Generate returns the completion for a prompt. An empty completion
	// is reported as an error.
	Generate(ctx context.Context, prompt string, params GenerateParams) (string, error)
}
