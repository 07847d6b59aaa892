// Command visionreader runs the reading assistant on a Raspberry Pi: three
// buttons, a camera, a microphone and a speaker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/visionreader/internal/app"
	"github.com/MrWong99/visionreader/internal/config"
	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/camera"
	"github.com/MrWong99/visionreader/pkg/gpio/periph"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "visionreader: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "visionreader: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("visionreader starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "visionreader",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Devices ───────────────────────────────────────────────────────────────
	var gpioOpts []periph.Option
	if !cfg.Buttons.IsActiveLow() {
		gpioOpts = append(gpioOpts, periph.WithActiveHigh())
	}
	bank, err := periph.Open(periph.PinNames{
		Chat:  cfg.Buttons.Chat,
		OCR:   cfg.Buttons.OCR,
		Pause: cfg.Buttons.Pause,
	}, gpioOpts...)
	if err != nil {
		slog.Error("failed to open buttons", "err", err)
		return 1
	}

	player, err := audio.NewExecPlayer(cfg.Playback.Player)
	if err != nil {
		slog.Error("failed to configure player", "err", err)
		return 1
	}
	recorder, err := audio.NewExecRecorder(cfg.Capture.Microphone)
	if err != nil {
		slog.Error("failed to configure microphone", "err", err)
		return 1
	}
	cam, err := camera.NewExecCamera(cfg.Camera.Command,
		camera.WithImagePath(cfg.Camera.ImagePath),
		camera.WithTimeout(cfg.Camera.Timeout),
	)
	if err != nil {
		slog.Error("failed to configure camera", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(cfg, providers,
		app.WithPanel(bank.Panel()),
		app.WithPlayer(player),
		app.WithRecorder(recorder),
		app.WithCamera(cam),
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.Handler),
		app.WithLevelVar(level),
		app.WithConfigPath(*configPath),
		app.WithCloser("gpio", bank.Close),
		app.WithCloser("telemetry", func() error {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tel.Shutdown(flushCtx)
		}),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = bank.Close()
		return 1
	}

	slog.Info("device ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      visionreader, startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("STT", describe(cfg.Providers.STT))
	printRow("TTS", describe(cfg.Providers.TTS))
	printRow("LLM", describe(cfg.Providers.LLM))
	printRow("Vision", describe(cfg.Providers.Vision))
	printRow("Lang detect", describe(cfg.Providers.LangDetect))
	printRow("Buttons", fmt.Sprintf("%s/%s/%s", cfg.Buttons.Chat, cfg.Buttons.OCR, cfg.Buttons.Pause))
	printRow("Speed", fmt.Sprintf("%.2fx", cfg.Playback.Speed))
	printRow("Language", cfg.Language.Default)
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func describe(e config.ProviderEntry) string {
	value := e.Name
	if value == "" {
		return "(not configured)"
	}
	if e.Model != "" {
		value += " / " + e.Model
	}
	if n := len(e.Fallbacks); n > 0 {
		value += fmt.Sprintf(" +%d", n)
	}
	return value
}

func printRow(kind, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
