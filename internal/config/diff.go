package config

import (
	"maps"
	"reflect"
	"slices"
)

// ConfigDiff describes the hot-reloadable changes between two configs.
// Everything else requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SpeedChanged bool
	NewSpeed     float64

	MessagesChanged bool
	NewMessages     MessagesConfig

	RepeatChanged bool
	NewRepeat     CommandsConfig

	// RestartRequired lists changed sections that are only read at startup.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SpeedChanged && !d.MessagesChanged && !d.RepeatChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Playback.Speed != new.Playback.Speed {
		d.SpeedChanged = true
		d.NewSpeed = new.Playback.Speed
	}
	if old.Messages != new.Messages {
		d.MessagesChanged = true
		d.NewMessages = new.Messages
	}
	if !slices.Equal(old.Commands.RepeatPhrases, new.Commands.RepeatPhrases) ||
		old.Commands.MatchThreshold != new.Commands.MatchThreshold {
		d.RepeatChanged = true
		d.NewRepeat = new.Commands
	}

	restart := func(section string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, section)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("buttons", !buttonsEqual(old.Buttons, new.Buttons))
	restart("playback.player", !slices.Equal(old.Playback.Player, new.Playback.Player) ||
		old.Playback.PollInterval != new.Playback.PollInterval)
	restart("capture", !captureEqual(old.Capture, new.Capture))
	restart("camera", !slices.Equal(old.Camera.Command, new.Camera.Command) ||
		old.Camera.ImagePath != new.Camera.ImagePath || old.Camera.Timeout != new.Camera.Timeout)
	restart("language", old.Language.Default != new.Language.Default ||
		!maps.Equal(old.Language.Voices, new.Language.Voices))
	restart("providers", !providersEqual(old.Providers, new.Providers))

	return d
}

func buttonsEqual(a, b ButtonsConfig) bool {
	return a.Chat == b.Chat && a.OCR == b.OCR && a.Pause == b.Pause &&
		a.PollInterval == b.PollInterval && a.IsActiveLow() == b.IsActiveLow()
}

func captureEqual(a, b CaptureConfig) bool {
	return slices.Equal(a.Microphone, b.Microphone) &&
		a.Calibration == b.Calibration && a.Silence == b.Silence &&
		a.MaxUtterance == b.MaxUtterance && a.NoSpeechTimeout == b.NoSpeechTimeout
}

func providersEqual(a, b ProvidersConfig) bool {
	return a.CircuitBreaker == b.CircuitBreaker &&
		entryEqual(a.STT, b.STT) && entryEqual(a.TTS, b.TTS) && entryEqual(a.LLM, b.LLM) &&
		entryEqual(a.Vision, b.Vision) && entryEqual(a.LangDetect, b.LangDetect)
}

func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) || !reflect.DeepEqual(a.Options, b.Options) && len(a.Options) > 0 {
		return false
	}
	return slices.EqualFunc(a.Fallbacks, b.Fallbacks, entryEqual)
}
