// Package task implements the two interaction scripts the device runs: a
// spoken question answered with the last scanned page as context
// ([ChatTask]), and a photo read aloud ([OcrTask]).
//
// Tasks never return errors. Every failure is logged and ends in exactly one
// spoken message, chosen by [Apology].
package task

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/internal/playback"
	"github.com/MrWong99/visionreader/pkg/provider/langdetect"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
)

// DefaultLanguage is spoken when no language is detected.
const DefaultLanguage = "vi"

// Speaker plays one utterance and blocks until it ends.
type Speaker interface {
	Play(ctx context.Context, text, lang string) (playback.Outcome, error)
}

// Listener records one spoken utterance and returns its transcript. An empty
// transcript means nothing intelligible was said.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// OcrStore holds the text of the last successful scan.
type OcrStore interface {
	SnapshotOcrText() string
	StoreOcrText(text string)
}

// Option configures a [ChatTask] or [OcrTask].
type Option func(*options)

type options struct {
	detector      langdetect.Detector
	defaultLang   string
	messages      Messages
	repeat        *RepeatCommand
	metrics       *observe.Metrics
	providerNames map[string]string
}

// WithDetector sets the language detector used before speaking dynamic text.
// Without one, everything is spoken in the default language.
func WithDetector(d langdetect.Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithDefaultLanguage sets the language of fixed phrases and the fallback
// for failed detection. Default "vi".
func WithDefaultLanguage(lang string) Option {
	return func(o *options) { o.defaultLang = lang }
}

// WithMessages overrides the fixed phrases. Empty fields keep their defaults.
func WithMessages(m Messages) Option {
	return func(o *options) { o.messages = m }
}

// WithRepeatCommand enables the "read again" voice command in [ChatTask].
func WithRepeatCommand(rc RepeatCommand) Option {
	return func(o *options) { o.repeat = &rc }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithProviderNames labels provider metrics by kind ("llm", "vision",
// "langdetect") with the configured provider name.
func WithProviderNames(names map[string]string) Option {
	return func(o *options) { o.providerNames = names }
}

func buildOptions(opts []Option) options {
	o := options{
		defaultLang: DefaultLanguage,
		messages:    DefaultMessages(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.defaultLang == "" {
		o.defaultLang = DefaultLanguage
	}
	o.messages = o.messages.WithDefaults()
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// voice is the speaking half shared by both tasks.
type voice struct {
	speaker     Speaker
	detector    langdetect.Detector
	defaultLang string
	messages    atomic.Pointer[Messages]
	metrics     *observe.Metrics
	names       map[string]string
}

func newVoice(speaker Speaker, o options) *voice {
	v := &voice{
		speaker:     speaker,
		detector:    o.detector,
		defaultLang: o.defaultLang,
		metrics:     o.metrics,
		names:       o.providerNames,
	}
	v.messages.Store(&o.messages)
	return v
}

// SetMessages replaces the fixed phrases for subsequent runs.
func (v *voice) SetMessages(m Messages) {
	m = m.WithDefaults()
	v.messages.Store(&m)
}

// Messages returns the phrases currently in use.
func (v *voice) Messages() Messages { return *v.messages.Load() }

// say speaks text, split into pieces the speech services accept, and stops
// at the first piece that does not complete. When synthesis fails the
// speech-error phrase is attempted once; its own failure is only logged.
func (v *voice) say(ctx context.Context, text, lang string) playback.Outcome {
	log := observe.Logger(ctx)
	outcome := playback.Completed
	var err error
	for i, piece := range splitSpeech(text, MaxUtteranceBytes) {
		if i > 0 && ctx.Err() != nil {
			outcome = playback.Cancelled
			break
		}
		if outcome, err = v.speaker.Play(ctx, piece, lang); outcome != playback.Completed {
			break
		}
	}
	switch outcome {
	case playback.SynthesisFailed:
		if errors.Is(err, tts.ErrInvalidInput) {
			log.Warn("task: text rejected by speech service", "lang", lang, "err", err)
		} else {
			log.Error("task: speech synthesis failed", "lang", lang, "err", err)
		}
		if ctx.Err() != nil {
			return outcome
		}
		if o, err := v.speaker.Play(ctx, v.Messages().SpeechError, v.defaultLang); o != playback.Completed {
			log.Error("task: speech error apology not spoken", "outcome", o, "err", err)
		}
	case playback.PlaybackFailed:
		log.Error("task: audio playback failed", "err", err)
	case playback.Cancelled:
		log.Debug("task: playback cancelled")
	}
	return outcome
}

// speakApology speaks the fixed phrase for a in the default language.
func (v *voice) speakApology(ctx context.Context, a Apology) {
	observe.Logger(ctx).Info("task: apologising", "kind", a)
	v.say(ctx, v.Messages().For(a), v.defaultLang)
}

// detect returns the language of text, or the default language when no
// detector is configured or detection fails.
func (v *voice) detect(ctx context.Context, text string) string {
	if v.detector == nil {
		return v.defaultLang
	}
	start := time.Now()
	lang, err := v.detector.Detect(ctx, text)
	v.observe(ctx, "langdetect", start, err)
	if err != nil {
		observe.Logger(ctx).Debug("task: language detection failed, using default", "default", v.defaultLang, "err", err)
		return v.defaultLang
	}
	if lang = tts.BaseLanguage(lang); lang == "" {
		return v.defaultLang
	}
	return lang
}

// observe records one provider call.
func (v *voice) observe(ctx context.Context, kind string, start time.Time, err error) {
	name := v.names[kind]
	if name == "" {
		name = kind
	}
	v.metrics.RecordProviderCall(context.WithoutCancel(ctx), name, kind, time.Since(start), err)
}
