// Package orchestrator turns button presses into interaction tasks.
//
// A single polling goroutine ([Orchestrator.Run]) samples the three buttons on
// every tick, detects presses as released→pressed transitions, toggles the
// pause flag, and launches at most one chat or OCR task at a time on a worker
// goroutine. Presses that arrive while a task is running are dropped.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/pkg/gpio"
)

// DefaultPollInterval is the button sampling period.
const DefaultPollInterval = 50 * time.Millisecond

// ErrWorkerStillRunning is returned by [Orchestrator.Shutdown] when the active
// task did not finish before the context expired.
var ErrWorkerStillRunning = errors.New("orchestrator: worker still running")

// Kind names a task type.
type Kind string

const (
	KindChat Kind = "chat"
	KindOCR  Kind = "ocr"
)

// Runner is one interaction script. Run must return when the script is done;
// the orchestrator releases the task slot afterwards.
type Runner interface {
	Run(ctx context.Context)
}

// RunnerFunc adapts a function to [Runner].
type RunnerFunc func(ctx context.Context)

// Run implements [Runner].
func (f RunnerFunc) Run(ctx context.Context) { f(ctx) }

// Option configures an [Orchestrator] during construction.
type Option func(*Orchestrator)

// WithPollInterval sets the button sampling period. The default is 50 ms.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.interval = d }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator owns the button edge detectors and the worker lifecycle.
type Orchestrator struct {
	state    *State
	interval time.Duration
	metrics  *observe.Metrics

	chat  *edge
	ocr   *edge
	pause *edge

	tasks map[Kind]Runner

	mu      sync.Mutex
	current *worker
	stopped bool
}

// worker is the handle on the running task.
type worker struct {
	kind    Kind
	started time.Time
	done    chan struct{}
}

// New creates an Orchestrator. The initial button levels are read here so a
// button held down at startup does not count as a press.
func New(panel gpio.Panel, state *State, chat, ocr Runner, opts ...Option) (*Orchestrator, error) {
	if panel.Chat == nil || panel.OCR == nil || panel.Pause == nil {
		return nil, errors.New("orchestrator: all three buttons are required")
	}
	if state == nil {
		return nil, errors.New("orchestrator: state must not be nil")
	}
	if chat == nil || ocr == nil {
		return nil, errors.New("orchestrator: chat and ocr runners must not be nil")
	}
	o := &Orchestrator{
		state:    state,
		interval: DefaultPollInterval,
		chat:     newEdge(panel.Chat),
		ocr:      newEdge(panel.OCR),
		pause:    newEdge(panel.Pause),
		tasks:    map[Kind]Runner{KindChat: chat, KindOCR: ocr},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.interval <= 0 {
		return nil, fmt.Errorf("orchestrator: poll interval must be positive, got %s", o.interval)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o, nil
}

// Run polls the buttons until ctx is cancelled. Workers inherit ctx, so
// cancelling it also aborts in-flight provider calls.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("orchestrator: polling buttons", "interval", o.interval)
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("orchestrator: polling stopped")
			return nil
		case <-ticker.C:
			o.Poll(ctx)
		}
	}
}

// Poll performs one tick: it samples all three buttons, then handles Chat,
// OCR, and Pause presses in that order. At most one task starts per tick.
func (o *Orchestrator) Poll(ctx context.Context) {
	chat := o.chat.poll()
	ocr := o.ocr.poll()
	pause := o.pause.poll()

	started := false
	if chat {
		started = o.launch(ctx, KindChat)
	}
	if ocr {
		if started {
			o.drop(ctx, KindOCR)
		} else {
			o.launch(ctx, KindOCR)
		}
	}
	if pause {
		paused := o.state.TogglePause()
		o.metrics.RecordPauseToggle(ctx, paused)
		slog.Info("orchestrator: pause toggled", "paused", paused)
	}
}

// launch starts a worker for kind unless a task is already running.
func (o *Orchestrator) launch(ctx context.Context, kind Kind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped || !o.state.TryAcquireTask() {
		o.dropLocked(ctx, kind)
		return false
	}

	w := &worker{kind: kind, started: time.Now(), done: make(chan struct{})}
	o.current = w
	o.metrics.RecordTaskStarted(ctx, string(kind))

	go o.runWorker(ctx, w, o.tasks[kind])
	return true
}

// runWorker runs one task under a "press.<kind>" span; the task's own spans
// and logs hang off it.
func (o *Orchestrator) runWorker(ctx context.Context, w *worker, r Runner) {
	ctx, span := observe.StartSpan(ctx, "press."+string(w.kind))
	log := observe.Logger(ctx)
	log.Info("orchestrator: task started", "kind", w.kind)

	defer close(w.done)
	defer func() {
		elapsed := time.Since(w.started)
		o.metrics.RecordTaskFinished(context.WithoutCancel(ctx), string(w.kind), elapsed)
		o.state.ReleaseTask()
		span.End()
		log.Info("orchestrator: task finished", "kind", w.kind, "elapsed", elapsed)
	}()
	defer func() {
		if p := recover(); p != nil {
			log.Error("orchestrator: task panicked", "kind", w.kind, "panic", p, "stack", string(debug.Stack()))
			observe.Fail(ctx, fmt.Errorf("panic: %v", p))
		}
	}()
	r.Run(ctx)
}

func (o *Orchestrator) drop(ctx context.Context, kind Kind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropLocked(ctx, kind)
}

func (o *Orchestrator) dropLocked(ctx context.Context, kind Kind) {
	o.metrics.RecordTaskDropped(ctx, string(kind))
	slog.Debug("orchestrator: press dropped, task running", "kind", kind)
}

// Active returns the kind of the running task and whether one is running.
func (o *Orchestrator) Active() (Kind, bool) {
	o.mu.Lock()
	w := o.current
	o.mu.Unlock()
	if w == nil {
		return "", false
	}
	select {
	case <-w.done:
		return "", false
	default:
		return w.kind, true
	}
}

// Shutdown stops launching tasks, raises the cancel signal so active playback
// ends, and waits for the running worker until ctx expires. Call it after the
// context passed to [Orchestrator.Run] has been cancelled.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.stopped = true
	w := o.current
	o.mu.Unlock()

	o.state.RequestCancel()
	if w == nil {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s task after %s", ErrWorkerStillRunning, w.kind, time.Since(w.started).Round(time.Millisecond))
	}
}
