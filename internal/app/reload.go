package app

import (
	"log/slog"

	"github.com/MrWong99/visionreader/internal/config"
	"github.com/MrWong99/visionreader/internal/task"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
)

// applyReload pushes the hot-reloadable parts of a changed config into the
// running subsystems. It is the [config.Watcher] callback.
func (a *App) applyReload(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.Level())
		slog.Info("app: log level changed", "level", d.NewLogLevel)
	}
	if d.SpeedChanged {
		a.session.SetSpeed(d.NewSpeed)
		slog.Info("app: playback speed changed", "speed", d.NewSpeed)
	}
	if d.MessagesChanged {
		m := messagesFrom(d.NewMessages)
		a.chat.SetMessages(m)
		a.ocr.SetMessages(m)
		slog.Info("app: spoken messages reloaded")
	}
	if d.RepeatChanged {
		a.chat.SetRepeatCommand(task.NewRepeatCommand(d.NewRepeat.RepeatPhrases, d.NewRepeat.MatchThreshold))
		slog.Info("app: repeat command reloaded", "phrases", len(d.NewRepeat.RepeatPhrases))
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("app: config changes need a restart to apply", "sections", d.RestartRequired)
	}
}

// messagesFrom overlays the configured phrases on the built-in ones.
func messagesFrom(m config.MessagesConfig) task.Messages {
	return task.Messages{
		Greeting:       m.Greeting,
		Scanning:       m.Scanning,
		NotUnderstood:  m.NotUnderstood,
		NoAnswer:       m.NoAnswer,
		GenericError:   m.GenericError,
		SpeechError:    m.SpeechError,
		CameraNotReady: m.CameraNotReady,
		NoText:         m.NoText,
	}.WithDefaults()
}

func voicesFor(l config.LanguageConfig) tts.Voices {
	return tts.NewVoices(l.Voices, l.Default)
}
