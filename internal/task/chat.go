package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/internal/playback"
	"github.com/MrWong99/visionreader/pkg/provider/llm"
	"github.com/MrWong99/visionreader/pkg/types"
)

// ChatTask answers one spoken question.
type ChatTask struct {
	*voice
	listener Listener
	model    llm.Provider
	store    OcrStore
	repeat   atomic.Pointer[RepeatCommand]
}

// NewChat creates a ChatTask.
func NewChat(listener Listener, model llm.Provider, store OcrStore, speaker Speaker, opts ...Option) (*ChatTask, error) {
	if listener == nil {
		return nil, errors.New("task: listener must not be nil")
	}
	if model == nil {
		return nil, errors.New("task: llm provider must not be nil")
	}
	if store == nil {
		return nil, errors.New("task: ocr store must not be nil")
	}
	if speaker == nil {
		return nil, errors.New("task: speaker must not be nil")
	}
	o := buildOptions(opts)
	t := &ChatTask{
		voice:    newVoice(speaker, o),
		listener: listener,
		model:    model,
		store:    store,
	}
	if o.repeat != nil {
		t.repeat.Store(o.repeat)
	}
	return t, nil
}

// SetRepeatCommand replaces the repeat command matcher for subsequent runs.
func (t *ChatTask) SetRepeatCommand(rc RepeatCommand) { t.repeat.Store(&rc) }

// BuildPrompt combines the last scanned page and the user's question.
func BuildPrompt(ocrText, question string) string {
	return fmt.Sprintf("Nội dung OCR: %s\nNgười dùng hỏi: %s", ocrText, question)
}

// Run greets the user, listens for one question, and speaks the answer.
func (t *ChatTask) Run(ctx context.Context) {
	ctx, span := observe.StartTask(ctx, "chat")
	defer span.End()

	if t.say(ctx, t.Messages().Greeting, t.defaultLang) == playback.Cancelled {
		return
	}

	start := time.Now()
	question, err := t.listener.Listen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observe.Logger(ctx).Error("task: listen failed", "err", err)
		observe.Fail(ctx, err)
		t.speakApology(ctx, ApologyGeneric)
		return
	}
	question = strings.TrimSpace(question)
	observe.Logger(ctx).Info("task: heard question", "chars", len([]rune(question)), "elapsed", time.Since(start))
	if question == "" {
		t.speakApology(ctx, ApologyNotUnderstood)
		return
	}

	if rc := t.repeat.Load(); rc != nil && rc.Match(question) {
		t.readAgain(ctx)
		return
	}

	req := llm.CompletionRequest{
		Messages: []types.Message{{Role: "user", Content: BuildPrompt(t.store.SnapshotOcrText(), question)}},
	}
	start = time.Now()
	resp, err := t.model.Complete(ctx, req)
	t.observe(ctx, "llm", start, err)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observe.Logger(ctx).Error("task: generate answer failed", "err", err)
		observe.Fail(ctx, err)
		t.speakApology(ctx, ApologyGeneric)
		return
	}

	var answer string
	if resp != nil {
		answer = strings.TrimSpace(resp.Content)
	}
	if answer == "" {
		t.speakApology(ctx, ApologyNoAnswer)
		return
	}
	t.say(ctx, answer, t.detect(ctx, answer))
}

// readAgain speaks the last scanned page without asking the model.
func (t *ChatTask) readAgain(ctx context.Context) {
	text := t.store.SnapshotOcrText()
	observe.Logger(ctx).Info("task: repeat command", "chars", len([]rune(text)))
	if text == "" {
		t.speakApology(ctx, ApologyNoText)
		return
	}
	t.say(ctx, text, t.detect(ctx, text))
}
