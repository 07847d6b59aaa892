package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/visionreader/internal/orchestrator"
	"github.com/MrWong99/visionreader/internal/playback"
	"github.com/MrWong99/visionreader/internal/task"
	"github.com/MrWong99/visionreader/internal/voice"
	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/camera"
)

// Default pins for the button panel (BCM numbering).
const (
	DefaultChatPin  = "GPIO26"
	DefaultOCRPin   = "GPIO12"
	DefaultPausePin = "GPIO25"
)

const (
	defaultCameraTimeout     = 10 * time.Second
	defaultWorkerJoinTimeout = 5 * time.Second
	defaultLangDetector      = "script"
	minSpeed, maxSpeed       = 0.5, 3.0
)

// ValidProviderNames lists the built-in provider names per kind. [Validate]
// warns about names outside this list, which may still be registered by a
// custom build.
var ValidProviderNames = map[string][]string{
	"stt":        {"google", "deepgram", "whisper", "whisper-native"},
	"tts":        {"google", "elevenlabs", "coqui"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"vision":     {"googlevision", "openai", "gemini"},
	"langdetect": {"google", "script"},
}

// Load reads, defaults and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates the
// result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field with its built-in value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	b := &cfg.Buttons
	b.Chat = orDefault(b.Chat, DefaultChatPin)
	b.OCR = orDefault(b.OCR, DefaultOCRPin)
	b.Pause = orDefault(b.Pause, DefaultPausePin)
	b.PollInterval = orDefault(b.PollInterval, orchestrator.DefaultPollInterval)

	p := &cfg.Playback
	p.Speed = orDefault(p.Speed, playback.DefaultSpeed)
	p.PollInterval = orDefault(p.PollInterval, playback.DefaultPollInterval)
	if len(p.Player) == 0 {
		p.Player = slices.Clone(audio.DefaultPlayerCommand)
	}

	c := &cfg.Capture
	if len(c.Microphone) == 0 {
		c.Microphone = slices.Clone(audio.DefaultRecorderCommand)
	}
	c.Calibration = orDefault(c.Calibration, voice.DefaultCalibration)
	c.Silence = orDefault(c.Silence, voice.DefaultSilence)
	c.MaxUtterance = orDefault(c.MaxUtterance, voice.DefaultMaxUtterance)
	c.NoSpeechTimeout = orDefault(c.NoSpeechTimeout, voice.DefaultNoSpeechTimeout)

	cam := &cfg.Camera
	if len(cam.Command) == 0 {
		cam.Command = slices.Clone(camera.DefaultCommand)
	}
	cam.ImagePath = orDefault(cam.ImagePath, camera.DefaultImagePath)
	cam.Timeout = orDefault(cam.Timeout, defaultCameraTimeout)

	l := &cfg.Language
	l.Default = orDefault(l.Default, "vi")
	if len(l.Voices) == 0 {
		l.Voices = map[string]string{"vi": "vi-VN", "en": "en-US"}
	}

	cmds := &cfg.Commands
	if len(cmds.RepeatPhrases) == 0 {
		cmds.RepeatPhrases = slices.Clone(task.DefaultRepeatPhrases)
	}
	cmds.MatchThreshold = orDefault(cmds.MatchThreshold, task.DefaultRepeatThreshold)

	cfg.Providers.LangDetect.Name = orDefault(cfg.Providers.LangDetect.Name, defaultLangDetector)
	cfg.Shutdown.WorkerJoinTimeout = orDefault(cfg.Shutdown.WorkerJoinTimeout, defaultWorkerJoinTimeout)
}

// orDefault returns v, or def when v is the zero value.
func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Validate checks that cfg is coherent and returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		add("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}

	pins := map[string]string{}
	for _, pin := range []struct{ field, name string }{
		{"buttons.chat", cfg.Buttons.Chat},
		{"buttons.ocr", cfg.Buttons.OCR},
		{"buttons.pause", cfg.Buttons.Pause},
	} {
		if pin.name == "" {
			add("%s is required", pin.field)
			continue
		}
		if prev, ok := pins[pin.name]; ok {
			add("%s %q is already used by %s", pin.field, pin.name, prev)
		}
		pins[pin.name] = pin.field
	}

	if s := cfg.Playback.Speed; s < minSpeed || s > maxSpeed {
		add("playback.speed %.2f is out of range [%.1f, %.1f]", s, minSpeed, maxSpeed)
	}
	if len(cfg.Playback.Player) == 0 || cfg.Playback.Player[0] == "" {
		add("playback.player must name a program")
	}
	if len(cfg.Capture.Microphone) == 0 || cfg.Capture.Microphone[0] == "" {
		add("capture.microphone must name a program")
	}
	if len(cfg.Camera.Command) == 0 || cfg.Camera.Command[0] == "" {
		add("camera.command must name a program")
	}

	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"buttons.poll_interval", cfg.Buttons.PollInterval},
		{"playback.poll_interval", cfg.Playback.PollInterval},
		{"capture.calibration", cfg.Capture.Calibration},
		{"capture.silence", cfg.Capture.Silence},
		{"capture.max_utterance", cfg.Capture.MaxUtterance},
		{"capture.no_speech_timeout", cfg.Capture.NoSpeechTimeout},
		{"camera.timeout", cfg.Camera.Timeout},
		{"shutdown.worker_join_timeout", cfg.Shutdown.WorkerJoinTimeout},
		{"providers.circuit_breaker.reset_timeout", cfg.Providers.CircuitBreaker.ResetTimeout},
	} {
		if d.value < 0 {
			add("%s must not be negative, got %s", d.field, d.value)
		}
	}
	if cfg.Providers.CircuitBreaker.MaxFailures < 0 {
		add("providers.circuit_breaker.max_failures must not be negative")
	}

	if t := cfg.Commands.MatchThreshold; t <= 0 || t > 1 {
		add("commands.match_threshold %.2f is out of range (0, 1]", t)
	}
	if _, ok := cfg.Language.Voices[cfg.Language.Default]; !ok && len(cfg.Language.Voices) > 0 {
		slog.Warn("config: no voice configured for the default language; the provider picks one", "language", cfg.Language.Default)
	}

	for _, k := range []struct {
		kind     string
		entry    ProviderEntry
		required bool
	}{
		{"stt", cfg.Providers.STT, true},
		{"tts", cfg.Providers.TTS, true},
		{"llm", cfg.Providers.LLM, true},
		{"vision", cfg.Providers.Vision, true},
		{"langdetect", cfg.Providers.LangDetect, false},
	} {
		errs = append(errs, validateEntry(k.kind, k.entry, k.required)...)
	}

	return errors.Join(errs...)
}

func validateEntry(kind string, e ProviderEntry, required bool) []error {
	var errs []error
	if e.Name == "" {
		if required {
			errs = append(errs, fmt.Errorf("providers.%s.name is required", kind))
		}
		return errs
	}
	warnUnknownProvider(kind, e.Name)
	for i, fb := range e.Fallbacks {
		prefix := fmt.Sprintf("providers.%s.fallbacks[%d]", kind, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s must not declare fallbacks", prefix))
		}
		warnUnknownProvider(kind, fb.Name)
	}
	return errs
}

func warnUnknownProvider(kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("config: unknown provider name; may be a typo or a custom provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
