package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/internal/playback"
	"github.com/MrWong99/visionreader/pkg/camera"
	"github.com/MrWong99/visionreader/pkg/provider/vision"
)

// OcrTask photographs a page and reads its text aloud.
type OcrTask struct {
	*voice
	camera camera.Camera
	reader vision.Provider
	store  OcrStore
}

// NewOCR creates an OcrTask.
func NewOCR(cam camera.Camera, reader vision.Provider, store OcrStore, speaker Speaker, opts ...Option) (*OcrTask, error) {
	if cam == nil {
		return nil, errors.New("task: camera must not be nil")
	}
	if reader == nil {
		return nil, errors.New("task: vision provider must not be nil")
	}
	if store == nil {
		return nil, errors.New("task: ocr store must not be nil")
	}
	if speaker == nil {
		return nil, errors.New("task: speaker must not be nil")
	}
	return &OcrTask{
		voice:  newVoice(speaker, buildOptions(opts)),
		camera: cam,
		reader: reader,
		store:  store,
	}, nil
}

// Run captures one photo, extracts its text, stores it as chat context, and
// speaks it. The stored text is only replaced on success.
func (t *OcrTask) Run(ctx context.Context) {
	ctx, span := observe.StartTask(ctx, "ocr")
	defer span.End()

	img, err := t.camera.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observe.Logger(ctx).Error("task: capture failed", "err", err)
		observe.Fail(ctx, err)
		t.speakApology(ctx, ApologyCameraNotReady)
		return
	}

	if t.say(ctx, t.Messages().Scanning, t.defaultLang) == playback.Cancelled {
		return
	}

	start := time.Now()
	text, err := t.reader.ExtractText(ctx, img)
	t.observe(ctx, "vision", start, err)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observe.Logger(ctx).Error("task: extract text failed", "err", err)
		observe.Fail(ctx, err)
		t.speakApology(ctx, ApologyGeneric)
		return
	}
	text = strings.TrimSpace(text)
	observe.Logger(ctx).Info("task: text extracted", "chars", len([]rune(text)), "elapsed", time.Since(start))
	if text == "" {
		t.speakApology(ctx, ApologyNoText)
		return
	}

	t.store.StoreOcrText(text)
	t.say(ctx, text, t.detect(ctx, text))
}
