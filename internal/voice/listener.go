// Package voice captures one spoken question from the microphone and turns
// it into text.
//
// [Listener.Listen] measures the room's noise floor, waits for speech, stops
// after a stretch of trailing silence, and hands the utterance to a
// speech-to-text provider. It cannot be interrupted by a button press; only
// ctx ends it early.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
)

const (
	DefaultCalibration     = time.Second
	DefaultSilence         = 800 * time.Millisecond
	DefaultMaxUtterance    = 15 * time.Second
	DefaultNoSpeechTimeout = 8 * time.Second

	frameDuration = 30 * time.Millisecond
)

// Option configures a [Listener].
type Option func(*Listener)

// WithCalibration sets how long the noise floor is measured before listening.
func WithCalibration(d time.Duration) Option {
	return func(l *Listener) { l.timing.calibration = d }
}

// WithSilence sets the trailing quiet that ends an utterance.
func WithSilence(d time.Duration) Option {
	return func(l *Listener) { l.timing.silence = d }
}

// WithMaxUtterance caps the length of one utterance.
func WithMaxUtterance(d time.Duration) Option {
	return func(l *Listener) { l.timing.maxUtterance = d }
}

// WithNoSpeechTimeout sets how long to wait for speech to begin.
func WithNoSpeechTimeout(d time.Duration) Option {
	return func(l *Listener) { l.timing.noSpeechTimeout = d }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// WithProviderName labels STT metrics with the configured provider.
func WithProviderName(name string) Option {
	return func(l *Listener) { l.providerName = name }
}

// Listener records and transcribes one utterance per call.
type Listener struct {
	recorder     audio.Recorder
	stt          stt.Provider
	timing       timing
	metrics      *observe.Metrics
	providerName string
}

// New creates a Listener.
func New(recorder audio.Recorder, provider stt.Provider, opts ...Option) (*Listener, error) {
	if recorder == nil {
		return nil, errors.New("voice: recorder must not be nil")
	}
	if provider == nil {
		return nil, errors.New("voice: stt provider must not be nil")
	}
	l := &Listener{
		recorder: recorder,
		stt:      provider,
		timing: timing{
			calibration:     DefaultCalibration,
			silence:         DefaultSilence,
			maxUtterance:    DefaultMaxUtterance,
			noSpeechTimeout: DefaultNoSpeechTimeout,
		},
		providerName: "stt",
	}
	for _, o := range opts {
		o(l)
	}
	var errs []error
	if l.timing.calibration < 0 {
		errs = append(errs, fmt.Errorf("voice: calibration must not be negative, got %s", l.timing.calibration))
	}
	if l.timing.silence <= 0 {
		errs = append(errs, fmt.Errorf("voice: silence must be positive, got %s", l.timing.silence))
	}
	if l.timing.maxUtterance <= 0 {
		errs = append(errs, fmt.Errorf("voice: max utterance must be positive, got %s", l.timing.maxUtterance))
	}
	if l.timing.noSpeechTimeout <= 0 {
		errs = append(errs, fmt.Errorf("voice: no-speech timeout must be positive, got %s", l.timing.noSpeechTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	return l, nil
}

// Listen records one utterance and returns its transcript. When nobody
// speaks before the no-speech timeout it returns "" without calling the
// provider.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	rec, err := l.recorder.Record(ctx)
	if err != nil {
		return "", fmt.Errorf("voice: open microphone: %w", err)
	}
	defer rec.Close()

	start := time.Now()
	speech, err := l.capture(ctx, rec)
	if err != nil {
		return "", err
	}
	clip := audio.Clip{Data: speech, Format: rec.Format()}
	slog.Debug("voice: capture finished", "speech", clip.Duration(), "elapsed", time.Since(start))
	if clip.Empty() {
		return "", nil
	}

	start = time.Now()
	text, err := l.stt.Transcribe(ctx, clip)
	l.metrics.RecordProviderCall(context.WithoutCancel(ctx), l.providerName, "stt", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("voice: transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// capture reads frames on one goroutine and segments them on another. The
// segmenting side closes the recording as soon as the utterance is complete,
// which unblocks the reader.
func (l *Listener) capture(ctx context.Context, rec audio.Recording) ([]byte, error) {
	format := rec.Format()
	size := audio.DurationBytes(frameDuration, format)
	if size == 0 {
		return nil, fmt.Errorf("voice: unusable capture format %s", format)
	}

	frames := make(chan []byte, 16)
	stop := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		for {
			buf := make([]byte, size)
			n, err := io.ReadFull(rec, buf)
			if n > 0 {
				select {
				case frames <- buf[:n]:
				case <-stop:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err != nil {
				select {
				case <-stop:
					return nil
				default:
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}
				return fmt.Errorf("voice: read microphone: %w", err)
			}
		}
	})

	var speech []byte
	g.Go(func() error {
		defer rec.Close()
		defer close(stop)
		seg := newSegmenter(l.timing, format)
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					speech = seg.utterance()
					return nil
				}
				if seg.push(f) {
					speech = seg.utterance()
					return nil
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return speech, nil
}
