// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (Google Cloud TTS,
// ElevenLabs, or a local Coqui server) and turns one utterance into one
// decoded PCM clip. The device speaks one utterance at a time, so the
// interface is request/response rather than streaming.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/visionreader/pkg/audio"
)

// ErrInvalidInput reports that the service rejected the text itself (empty,
// too long, unsupported characters). Retrying or apologising through the same
// service is pointless, so callers stay silent on it.
var ErrInvalidInput = errors.New("tts: invalid input")

// Request describes one utterance to synthesize.
type Request struct {
	// Text is the utterance. Must be non-empty.
	Text string

	// Language is a BCP-47 tag such as "vi" or "en-US".
	Language string

	// Voice is the provider-specific voice identifier. Empty selects a voice
	// from Language.
	Voice string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req to PCM. The returned clip is never empty when err
	// is nil. Failures caused by the text are wrapped around [ErrInvalidInput].
	Synthesize(ctx context.Context, req Request) (*audio.Clip, error)
}
