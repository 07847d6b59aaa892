// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the visionreader device.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown values map to Info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure, loaded from YAML with [Load]
// or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Capture   CaptureConfig   `yaml:"capture"`
	Camera    CameraConfig    `yaml:"camera"`
	Language  LanguageConfig  `yaml:"language"`
	Messages  MessagesConfig  `yaml:"messages"`
	Commands  CommandsConfig  `yaml:"commands"`
	Providers ProvidersConfig `yaml:"providers"`
	Shutdown  ShutdownConfig  `yaml:"shutdown"`
}

// ServerConfig holds logging and the optional HTTP endpoint.
type ServerConfig struct {
	LogLevel LogLevel `yaml:"log_level"`

	// ListenAddr serves /healthz, /readyz and /metrics when non-empty
	// (e.g. ":9090").
	ListenAddr string `yaml:"listen_addr"`
}

// ButtonsConfig names the GPIO pins of the three buttons.
type ButtonsConfig struct {
	Chat         string        `yaml:"chat"`
	OCR          string        `yaml:"ocr"`
	Pause        string        `yaml:"pause"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// ActiveLow means a pressed button pulls the pin to ground. Default true.
	ActiveLow *bool `yaml:"active_low"`
}

// IsActiveLow reports the effective polarity.
func (b ButtonsConfig) IsActiveLow() bool {
	return b.ActiveLow == nil || *b.ActiveLow
}

// PlaybackConfig tunes speech output.
type PlaybackConfig struct {
	// Speed is the tempo multiplier applied to synthesised speech.
	Speed float64 `yaml:"speed"`

	// PollInterval bounds how quickly pause and cancel are noticed while
	// audio plays.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Player is the argv of the audio sink fed raw PCM on stdin.
	Player []string `yaml:"player"`
}

// CaptureConfig tunes microphone recording.
type CaptureConfig struct {
	Microphone      []string      `yaml:"microphone"`
	Calibration     time.Duration `yaml:"calibration"`
	Silence         time.Duration `yaml:"silence"`
	MaxUtterance    time.Duration `yaml:"max_utterance"`
	NoSpeechTimeout time.Duration `yaml:"no_speech_timeout"`
}

// CameraConfig describes the still-capture command.
type CameraConfig struct {
	// Command is the capture argv. "{path}" is replaced by ImagePath.
	Command   []string      `yaml:"command"`
	ImagePath string        `yaml:"image_path"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LanguageConfig selects the default speech language and per-language
// voices.
type LanguageConfig struct {
	Default string `yaml:"default"`

	// Voices maps a base language ("vi") to a voice identifier ("vi-VN").
	Voices map[string]string `yaml:"voices"`
}

// MessagesConfig overrides the fixed phrases spoken by the device. Empty
// fields keep the built-in wording.
type MessagesConfig struct {
	Greeting       string `yaml:"greeting"`
	Scanning       string `yaml:"scanning"`
	NotUnderstood  string `yaml:"not_understood"`
	NoAnswer       string `yaml:"no_answer"`
	GenericError   string `yaml:"generic_error"`
	SpeechError    string `yaml:"speech_error"`
	CameraNotReady string `yaml:"camera_not_ready"`
	NoText         string `yaml:"no_text"`
}

// CommandsConfig configures spoken commands recognised by the chat task.
type CommandsConfig struct {
	RepeatPhrases  []string `yaml:"repeat_phrases"`
	MatchThreshold float64  `yaml:"match_threshold"`
}

// ProvidersConfig selects one provider per kind.
type ProvidersConfig struct {
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	LLM        ProviderEntry `yaml:"llm"`
	Vision     ProviderEntry `yaml:"vision"`
	LangDetect ProviderEntry `yaml:"langdetect"`

	// CircuitBreaker tunes the breaker placed in front of every provider.
	CircuitBreaker BreakerConfig `yaml:"circuit_breaker"`
}

// BreakerConfig mirrors the tunable fields of a circuit breaker.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
// Name selects the constructor in the [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails. Fallback
	// entries must not declare fallbacks of their own.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// OptionString returns Options[key] when it is a string.
func (e ProviderEntry) OptionString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptionStrings returns Options[key] as a string list. A single string is
// accepted as a one-element list.
func (e ProviderEntry) OptionStrings(key string) []string {
	switch v := e.Options[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// OptionInt returns Options[key] when it is an integer.
func (e ProviderEntry) OptionInt(key string) int {
	n, _ := e.Options[key].(int)
	return n
}

// OptionBool returns Options[key] when it is a boolean.
func (e ProviderEntry) OptionBool(key string) bool {
	b, _ := e.Options[key].(bool)
	return b
}

// OptionDuration parses Options[key] as a Go duration string. Invalid or
// missing values yield zero.
func (e ProviderEntry) OptionDuration(key string) time.Duration {
	d, _ := time.ParseDuration(e.OptionString(key))
	return d
}

// ShutdownConfig bounds graceful shutdown.
type ShutdownConfig struct {
	// WorkerJoinTimeout is how long shutdown waits for a running task.
	WorkerJoinTimeout time.Duration `yaml:"worker_join_timeout"`
}
