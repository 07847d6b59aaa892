// Package llmvision reads text from photos by asking a multimodal LLM.
//
// Any llm.Provider whose model accepts images works. In practice this is the
// openai provider pointed either at OpenAI or at Gemini's OpenAI-compatible
// endpoint.
package llmvision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/visionreader/pkg/provider/llm"
	"github.com/MrWong99/visionreader/pkg/provider/vision"
	"github.com/MrWong99/visionreader/pkg/types"
)

// DefaultPrompt asks the model to transcribe every piece of text in the photo.
const DefaultPrompt = "Hãy đọc toàn bộ chữ có trong bức ảnh này và trả về chính xác nội dung văn bản."

// Provider implements vision.Provider on top of an llm.Provider.
type Provider struct {
	llm       llm.Provider
	prompt    string
	maxTokens int
}

var _ vision.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithPrompt replaces [DefaultPrompt].
func WithPrompt(prompt string) Option {
	return func(p *Provider) {
		if prompt != "" {
			p.prompt = prompt
		}
	}
}

// WithMaxTokens caps the length of the transcription.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// New wraps model. It fails when the model reports that it cannot take image
// input.
func New(model llm.Provider, opts ...Option) (*Provider, error) {
	if model == nil {
		return nil, errors.New("llmvision: llm provider must not be nil")
	}
	if !model.Capabilities().SupportsVision {
		return nil, errors.New("llmvision: model does not support image input")
	}
	p := &Provider{llm: model, prompt: DefaultPrompt, maxTokens: 2048}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ExtractText implements vision.Provider.
func (p *Provider) ExtractText(ctx context.Context, img vision.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("llmvision: image is empty")
	}
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{{
			Role:    "user",
			Content: p.prompt,
			Images:  []types.Image{img},
		}},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llmvision: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Content), nil
}
