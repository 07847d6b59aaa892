// Package app wires the visionreader subsystems into a running device.
//
// [New] builds the button panel, audio devices, camera, playback session,
// tasks and orchestrator from the config. [App.Run] polls the buttons and
// serves the optional HTTP endpoint and config watcher until its context
// ends. [App.Shutdown] tears everything down in order.
//
// For testing, inject doubles through the WithX options. Anything not
// injected is created from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/visionreader/internal/config"
	"github.com/MrWong99/visionreader/internal/health"
	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/internal/orchestrator"
	"github.com/MrWong99/visionreader/internal/playback"
	"github.com/MrWong99/visionreader/internal/task"
	"github.com/MrWong99/visionreader/internal/voice"
	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/camera"
	"github.com/MrWong99/visionreader/pkg/gpio"
	"github.com/MrWong99/visionreader/pkg/provider/langdetect"
	"github.com/MrWong99/visionreader/pkg/provider/llm"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
	"github.com/MrWong99/visionreader/pkg/provider/vision"
)

// Providers holds one built provider per kind. LangDetect may be nil, in
// which case everything is spoken in the default language.
type Providers struct {
	STT        stt.Provider
	TTS        tts.Provider
	LLM        llm.Provider
	Vision     vision.Provider
	LangDetect langdetect.Detector

	// Names labels provider metrics per kind, e.g. "stt" → "google".
	Names map[string]string
}

func (p *Providers) validate() error {
	var errs []error
	if p.STT == nil {
		errs = append(errs, errors.New("stt provider is required"))
	}
	if p.TTS == nil {
		errs = append(errs, errors.New("tts provider is required"))
	}
	if p.LLM == nil {
		errs = append(errs, errors.New("llm provider is required"))
	}
	if p.Vision == nil {
		errs = append(errs, errors.New("vision provider is required"))
	}
	return errors.Join(errs...)
}

func (p *Providers) name(kind string) string {
	if n := p.Names[kind]; n != "" {
		return n
	}
	return kind
}

type closer struct {
	name string
	fn   func() error
}

// App owns the device's subsystems.
type App struct {
	cfg         *config.Config
	providers   *Providers
	configPath  string
	reloadEvery time.Duration
	levelVar    *slog.LevelVar
	metrics     *observe.Metrics
	metricsH    http.Handler

	panel    gpio.Panel
	player   audio.Player
	recorder audio.Recorder
	camera   camera.Camera

	state    *orchestrator.State
	session  *playback.Session
	chat     *task.ChatTask
	ocr      *task.OcrTask
	orch     *orchestrator.Orchestrator
	health   *health.Handler
	server   *http.Server
	listener net.Listener
	watcher  *config.Watcher

	closers  []closer
	stopOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*App)

// WithPanel injects the button panel instead of leaving it to the caller's
// GPIO driver. It is required unless a test provides one.
func WithPanel(p gpio.Panel) Option {
	return func(a *App) { a.panel = p }
}

// WithPlayer injects the audio sink instead of spawning the configured player.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithRecorder injects the microphone instead of spawning the configured
// recorder.
func WithRecorder(r audio.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithCamera injects the camera instead of running the configured command.
func WithCamera(c camera.Camera) Option {
	return func(a *App) { a.camera = c }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics when the HTTP endpoint is enabled.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithLevelVar lets config reloads change the log level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// WithConfigPath enables hot reload by watching path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithReloadInterval sets how often the config file is polled. The default
// is the watcher's own.
func WithReloadInterval(d time.Duration) Option {
	return func(a *App) { a.reloadEvery = d }
}

// WithListener serves HTTP on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithCloser registers fn to run during Shutdown after the orchestrator has
// stopped. Closers run in registration order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, closer{name: name, fn: fn}) }
}

// New wires all subsystems. It starts nothing; call [App.Run].
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil {
		return nil, errors.New("app: providers must not be nil")
	}
	if err := providers.validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initDevices(); err != nil {
		return nil, fmt.Errorf("app: init devices: %w", err)
	}
	if err := a.initTasks(); err != nil {
		return nil, fmt.Errorf("app: init tasks: %w", err)
	}
	a.initHTTP()
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyReload, config.WithInterval(a.reloadEvery))
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.watcher = w
	}
	return a, nil
}

func (a *App) initDevices() error {
	if a.panel.Chat == nil || a.panel.OCR == nil || a.panel.Pause == nil {
		return errors.New("button panel is required")
	}
	var err error
	if a.player == nil {
		if a.player, err = audio.NewExecPlayer(a.cfg.Playback.Player); err != nil {
			return err
		}
	}
	if a.recorder == nil {
		if a.recorder, err = audio.NewExecRecorder(a.cfg.Capture.Microphone); err != nil {
			return err
		}
	}
	if a.camera == nil {
		a.camera, err = camera.NewExecCamera(a.cfg.Camera.Command,
			camera.WithImagePath(a.cfg.Camera.ImagePath),
			camera.WithTimeout(a.cfg.Camera.Timeout),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initTasks() error {
	cfg := a.cfg
	a.state = orchestrator.NewState()

	session, err := playback.New(a.providers.TTS, a.player, a.state,
		playback.WithSpeed(cfg.Playback.Speed),
		playback.WithPollInterval(cfg.Playback.PollInterval),
		playback.WithVoices(voicesFor(cfg.Language)),
		playback.WithMetrics(a.metrics),
		playback.WithProviderName(a.providers.name("tts")),
	)
	if err != nil {
		return err
	}
	a.session = session

	listener, err := voice.New(a.recorder, a.providers.STT,
		voice.WithCalibration(cfg.Capture.Calibration),
		voice.WithSilence(cfg.Capture.Silence),
		voice.WithMaxUtterance(cfg.Capture.MaxUtterance),
		voice.WithNoSpeechTimeout(cfg.Capture.NoSpeechTimeout),
		voice.WithMetrics(a.metrics),
		voice.WithProviderName(a.providers.name("stt")),
	)
	if err != nil {
		return err
	}

	common := []task.Option{
		task.WithDefaultLanguage(cfg.Language.Default),
		task.WithMessages(messagesFrom(cfg.Messages)),
		task.WithMetrics(a.metrics),
		task.WithProviderNames(map[string]string{
			"llm":        a.providers.name("llm"),
			"vision":     a.providers.name("vision"),
			"langdetect": a.providers.name("langdetect"),
		}),
	}
	if a.providers.LangDetect != nil {
		common = append(common, task.WithDetector(a.providers.LangDetect))
	}

	chatOpts := append(common[:len(common):len(common)],
		task.WithRepeatCommand(task.NewRepeatCommand(cfg.Commands.RepeatPhrases, cfg.Commands.MatchThreshold)))
	if a.chat, err = task.NewChat(listener, a.providers.LLM, a.state, session, chatOpts...); err != nil {
		return err
	}
	if a.ocr, err = task.NewOCR(a.camera, a.providers.Vision, a.state, session, common...); err != nil {
		return err
	}

	a.orch, err = orchestrator.New(a.panel, a.state, a.chat, a.ocr,
		orchestrator.WithPollInterval(cfg.Buttons.PollInterval),
		orchestrator.WithMetrics(a.metrics),
	)
	return err
}

func (a *App) initHTTP() {
	checkers := []health.Checker{health.Buttons(a.panel)}
	if b, ok := a.player.(interface{ Binary() string }); ok {
		checkers = append(checkers, health.Binary("player", b.Binary()))
	}
	if b, ok := a.camera.(interface{ Binary() string }); ok {
		checkers = append(checkers, health.Binary("camera", b.Binary()))
	}
	kinds := map[string]health.Availability{}
	for kind, p := range map[string]any{
		"stt": a.providers.STT, "tts": a.providers.TTS, "llm": a.providers.LLM, "vision": a.providers.Vision,
	} {
		if av, ok := p.(health.Availability); ok {
			kinds[kind] = av
		}
	}
	if len(kinds) > 0 {
		checkers = append(checkers, health.Providers(kinds))
	}
	a.health = health.New(checkers...)

	if a.cfg.Server.ListenAddr == "" && a.listener == nil {
		return
	}
	mux := http.NewServeMux()
	a.health.Register(mux)
	if a.metricsH != nil {
		mux.Handle("GET /metrics", a.metricsH)
	}
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Handler returns the HTTP handler serving the health checks and metrics, or nil
// when the endpoint is disabled.
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

// Config returns the config in effect: the last valid reload when hot reload
// is enabled, the startup config otherwise.
func (a *App) Config() *config.Config {
	if a.watcher != nil {
		return a.watcher.Current()
	}
	return a.cfg
}

// State exposes the shared task state.
func (a *App) State() *orchestrator.State { return a.state }

// Speed returns the current playback speed.
func (a *App) Speed() float64 { return a.session.Speed() }

// Run polls the buttons and serves HTTP and config reloads until ctx ends.
// Tasks started by a press inherit ctx.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.orch.Run(gctx) })

	if a.server != nil {
		g.Go(func() error { return a.serve(gctx) })
	}
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("app: ready", "http", a.cfg.Server.ListenAddr, "hot_reload", a.watcher != nil)
	return g.Wait()
}

func (a *App) serve(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", a.server.Addr); err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}
	errc := make(chan error, 1)
	go func() { errc <- a.server.Serve(ln) }()

	select {
	case err := <-errc:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("app: http shutdown", "err", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	}
}

// Shutdown stops the orchestrator, waits up to
// shutdown.worker_join_timeout for a running task, then runs the registered
// closers in order. Closers are skipped once ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("app: shutting down", "closers", len(a.closers))

		joinCtx, cancel := context.WithTimeout(ctx, a.Config().Shutdown.WorkerJoinTimeout)
		if err := a.orch.Shutdown(joinCtx); err != nil {
			slog.Warn("app: task did not finish in time", "err", err)
			errs = append(errs, err)
		}
		cancel()

		for i, c := range a.closers {
			if ctx.Err() != nil {
				slog.Warn("app: shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, ctx.Err())
				return
			}
			if err := c.fn(); err != nil {
				slog.Warn("app: close failed", "name", c.name, "err", err)
				errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
			}
		}
	})
	return errors.Join(errs...)
}
