// Package stt defines the Provider interface for Speech-to-Text backends.
//
// The device records one spoken question per press, so providers receive a
// complete utterance rather than a live stream. Recognition language is part
// of each provider's configuration.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/visionreader/pkg/audio"
)

// ErrEmptyAudio is returned when the clip holds no samples.
var ErrEmptyAudio = errors.New("stt: empty audio")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe returns the words spoken in clip. Unintelligible audio yields
	// an empty string and a nil error.
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}
