// Package mock provides a test double for the tts.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Clip: &audio.Clip{Data: pcm, Format: f}}
//	clip, err := p.Synthesize(ctx, tts.Request{Text: "Xin chào", Language: "vi"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
)

// DefaultClip is returned when Clip is nil: 200 ms of silence at 16 kHz mono.
var DefaultClip = audio.Clip{
	Data:   make([]byte, 6400),
	Format: audio.Format{SampleRate: 16000, Channels: 1},
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Synthesize. Nil selects DefaultClip.
	Clip *audio.Clip

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// ErrFor, if set, is consulted per request; a non-nil result overrides
	// SynthesizeErr. Useful to fail only specific utterances.
	ErrFor func(tts.Request) error

	// SynthesizeCalls records every request in order.
	SynthesizeCalls []tts.Request
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (*audio.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, req)
	if p.ErrFor != nil {
		if err := p.ErrFor(req); err != nil {
			return nil, err
		}
	}
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	clip := DefaultClip
	if p.Clip != nil {
		clip = *p.Clip
	}
	clip.Data = append([]byte(nil), clip.Data...)
	return &clip, nil
}

// Requests returns a copy of the recorded requests.
func (p *Provider) Requests() []tts.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tts.Request(nil), p.SynthesizeCalls...)
}

// Texts returns the text of every recorded request.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeCalls))
	for i, r := range p.SynthesizeCalls {
		out[i] = r.Text
	}
	return out
}
