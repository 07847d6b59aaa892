// Package playback speaks one utterance at a time on the audio device.
//
// A [Session] synthesizes text, time-stretches the clip to the configured
// speaking speed, and plays it while honouring the shared pause flag and
// cancel signal. Every call to [Session.Play] leaves the device idle.
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
)

const (
	// DefaultSpeed is the playback speed multiplier applied to every clip.
	DefaultSpeed = 1.2

	// DefaultPollInterval bounds how long a pause or cancel goes unnoticed.
	DefaultPollInterval = 100 * time.Millisecond
)

// Outcome is how one [Session.Play] call ended.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	SynthesisFailed
	PlaybackFailed
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case SynthesisFailed:
		return "synthesis_failed"
	case PlaybackFailed:
		return "playback_failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Controls is the slice of shared interaction state a session observes.
type Controls interface {
	ClearCancel()
	CancelRequested() bool
	IsPaused() bool
	Changed() <-chan struct{}
}

// Option configures a [Session].
type Option func(*Session)

// WithSpeed sets the initial speed multiplier.
func WithSpeed(speed float64) Option {
	return func(s *Session) { s.SetSpeed(speed) }
}

// WithPollInterval sets the upper bound on pause/cancel reaction time.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

// WithVoices sets the language → voice table used when synthesizing.
func WithVoices(v tts.Voices) Option {
	return func(s *Session) { s.voices = v }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithProviderName labels TTS errors in metrics.
func WithProviderName(name string) Option {
	return func(s *Session) { s.providerName = name }
}

// Session owns the audio device. Calls to Play are serialised.
type Session struct {
	synth        tts.Provider
	player       audio.Player
	controls     Controls
	voices       tts.Voices
	interval     time.Duration
	metrics      *observe.Metrics
	providerName string

	speed atomic.Uint64 // math.Float64bits

	mu sync.Mutex
}

// New creates a Session.
func New(synth tts.Provider, player audio.Player, controls Controls, opts ...Option) (*Session, error) {
	if synth == nil {
		return nil, errors.New("playback: tts provider must not be nil")
	}
	if player == nil {
		return nil, errors.New("playback: player must not be nil")
	}
	if controls == nil {
		return nil, errors.New("playback: controls must not be nil")
	}
	s := &Session{
		synth:        synth,
		player:       player,
		controls:     controls,
		interval:     DefaultPollInterval,
		providerName: "tts",
	}
	s.SetSpeed(DefaultSpeed)
	for _, o := range opts {
		o(s)
	}
	if s.interval <= 0 {
		return nil, fmt.Errorf("playback: poll interval must be positive, got %s", s.interval)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// SetSpeed changes the speed multiplier for subsequent utterances.
// Non-positive values select [DefaultSpeed].
func (s *Session) SetSpeed(speed float64) {
	if speed <= 0 || math.IsNaN(speed) {
		speed = DefaultSpeed
	}
	s.speed.Store(math.Float64bits(speed))
}

// Speed returns the current speed multiplier.
func (s *Session) Speed() float64 {
	return math.Float64frombits(s.speed.Load())
}

// Play speaks text in language lang and blocks until the utterance has
// finished, was cancelled, or failed. The returned error is non-nil exactly
// for [SynthesisFailed] and [PlaybackFailed]; a synthesis error caused by the
// text itself wraps [tts.ErrInvalidInput].
//
// Play clears the cancel signal before synthesizing. A raised cancel signal
// or a cancelled ctx stops playback and yields [Cancelled]. While paused the
// device is paused and Play waits, without timeout, for resume.
func (s *Session) Play(ctx context.Context, text, lang string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "playback.play")
	defer span.End()

	outcome, err := s.play(ctx, text, lang)
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	s.metrics.RecordPlaybackOutcome(context.WithoutCancel(ctx), outcome.String())
	if err != nil {
		span.RecordError(err)
	}
	return outcome, err
}

func (s *Session) play(ctx context.Context, text, lang string) (Outcome, error) {
	s.controls.ClearCancel()

	start := time.Now()
	clip, err := s.synth.Synthesize(ctx, tts.Request{
		Text:     text,
		Language: lang,
		Voice:    s.voices.Resolve(lang),
	})
	s.metrics.RecordProviderCall(context.WithoutCancel(ctx), s.providerName, "tts", time.Since(start), err)
	if err != nil {
		return SynthesisFailed, fmt.Errorf("playback: synthesize: %w", err)
	}
	if clip == nil || clip.Empty() {
		return SynthesisFailed, errors.New("playback: synthesize: empty clip")
	}

	stretched := audio.Speedup(*clip, s.Speed())
	pb, err := s.player.Play(ctx, stretched)
	if err != nil {
		return PlaybackFailed, fmt.Errorf("playback: start: %w", err)
	}
	defer func() {
		if err := pb.Stop(); err != nil {
			observe.Logger(ctx).Warn("playback: stop device", "err", err)
		}
	}()
	observe.Logger(ctx).Debug("playback: started", "lang", lang, "duration", stretched.Duration(), "chars", len([]rune(text)))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		wake := s.controls.Changed()
		if s.cancelled(ctx) {
			return Cancelled, nil
		}
		if s.controls.IsPaused() {
			if err := pb.Pause(); err != nil {
				return PlaybackFailed, fmt.Errorf("playback: pause: %w", err)
			}
			if !s.waitWhilePaused(ctx, ticker) {
				return Cancelled, nil
			}
			if err := pb.Resume(); err != nil {
				return PlaybackFailed, fmt.Errorf("playback: resume: %w", err)
			}
			continue
		}

		select {
		case <-pb.Done():
			if s.cancelled(ctx) {
				return Cancelled, nil
			}
			if err := pb.Err(); err != nil {
				return PlaybackFailed, fmt.Errorf("playback: device: %w", err)
			}
			return Completed, nil
		case <-wake:
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
}

// waitWhilePaused blocks until the pause flag drops. It returns false when
// playback was cancelled in the meantime.
func (s *Session) waitWhilePaused(ctx context.Context, ticker *time.Ticker) bool {
	observe.Logger(ctx).Debug("playback: paused")
	for {
		wake := s.controls.Changed()
		if s.cancelled(ctx) {
			return false
		}
		if !s.controls.IsPaused() {
			observe.Logger(ctx).Debug("playback: resumed")
			return true
		}
		select {
		case <-wake:
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
}

func (s *Session) cancelled(ctx context.Context) bool {
	return s.controls.CancelRequested() || ctx.Err() != nil
}
