package domain

import "context"

// LLMClient defines the capability to send prompts to an LLM and receive
// textual responses. Implementations must be safe for concurrent use.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*LLMResponse, error)

	// GenerateStream starts a streaming generation. Chunks arrive on the
	// first channel in generation order; a single error may arrive on the
	// second. Both channels close when the stream ends.
	GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan LLMStreamChunk, <-chan error, error)

	Version() string
}

// LLMResponse carries the LLM output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}

// LLMStreamChunk is one increment of a streaming generation.
type LLMStreamChunk struct {
	Text string
	Done bool
}
