package resilience

import (
	"context"

	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
)

// STTFallback is an [stt.Provider] that fails over across recognisers.
type STTFallback struct {
	*FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary tried first.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Transcribe implements [stt.Provider].
func (f *STTFallback) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	return ExecuteWithResult(f.FallbackGroup, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, clip)
	})
}
