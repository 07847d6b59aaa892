package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
)

func clipOf(d time.Duration) audio.Clip {
	f := audio.Format{SampleRate: 16000, Channels: 1}
	return audio.Clip{Data: make([]byte, audio.DurationBytes(d, f)), Format: f}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var got recognizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != recognizePath || r.URL.Query().Get("key") != "k" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"results":[
			{"alternatives":[{"transcript":"trang này ","confidence":0.9},{"transcript":"trang nay"}]},
			{"alternatives":[]},
			{"alternatives":[{"transcript":"nói gì"}]}
		]}`)
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL), WithAlternativeLanguages("en-US"))
	text, err := p.Transcribe(context.Background(), clipOf(time.Second))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "trang này nói gì" {
		t.Errorf("text = %q", text)
	}
	if got.Config.LanguageCode != "vi-VN" || got.Config.SampleRateHertz != 16000 || got.Config.Encoding != "LINEAR16" {
		t.Errorf("config = %+v", got.Config)
	}
	if len(got.Config.AlternativeLanguageCodes) != 1 {
		t.Errorf("alternatives = %v", got.Config.AlternativeLanguageCodes)
	}
	if got.Audio.Content == "" {
		t.Error("audio content missing")
	}
}

func TestTranscribe_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	text, err := p.Transcribe(context.Background(), clipOf(time.Second))
	if err != nil || text != "" {
		t.Errorf("Transcribe = %q, %v; want empty, nil", text, err)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	if _, err := p.Transcribe(context.Background(), clipOf(time.Second)); err == nil {
		t.Error("expected error for HTTP 400")
	}
	if _, err := p.Transcribe(context.Background(), clipOf(2*time.Minute)); err == nil {
		t.Error("expected error for clip over the synchronous limit")
	}
	if _, err := p.Transcribe(context.Background(), audio.Clip{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("empty clip err = %v", err)
	}
	if _, err := New(""); err == nil {
		t.Error("expected error for empty key")
	}
}
