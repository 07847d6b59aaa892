// Package llm defines the Provider interface for Large Language Model backends.
//
// The device uses a model for two jobs: answering a spoken question with the
// last scanned page as context, and (through the vision package) reading the
// text in a photo. Both are single-shot completions; no conversation history
// is kept between presses.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/visionreader/pkg/types"
)

// Usage reports token consumption for a completion request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is the input to [Provider.Complete].
type CompletionRequest struct {
	// Messages is the prompt, oldest first.
	Messages []types.Message

	// SystemPrompt, when non-empty, is sent as a leading system message.
	SystemPrompt string

	// Temperature controls sampling randomness. Zero selects the provider default.
	Temperature float64

	// MaxTokens caps the response length. Zero selects the provider default.
	MaxTokens int
}

// CompletionResponse is the result of a non-streaming completion.
type CompletionResponse struct {
	// Content is the generated text. It may be empty when the model declines
	// to answer; callers treat that as "no answer", not as an error.
	Content string

	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and blocks until the full response is available or
	// ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the configured model.
	Capabilities() types.ModelCapabilities
}
