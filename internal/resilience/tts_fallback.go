package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
)

// TTSFallback is a [tts.Provider] that fails over across synthesisers.
// Text rejected as [tts.ErrInvalidInput] is not retried elsewhere.
type TTSFallback struct {
	*FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary tried first.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	fatal := cfg.Fatal
	cfg.Fatal = func(err error) bool {
		return errors.Is(err, tts.ErrInvalidInput) || (fatal != nil && fatal(err))
	}
	return &TTSFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Synthesize implements [tts.Provider].
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	return ExecuteWithResult(f.FallbackGroup, func(p tts.Provider) (*audio.Clip, error) {
		return p.Synthesize(ctx, req)
	})
}
