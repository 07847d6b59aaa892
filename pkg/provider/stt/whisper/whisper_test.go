package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
)

var speech = audio.Clip{
	Data:   make([]byte, 32000),
	Format: audio.Format{SampleRate: 16000, Channels: 1},
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		fields = map[string]string{}
		wavLen int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != inferencePath {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		if fh := r.MultipartForm.File["file"]; len(fh) == 1 {
			wavLen = int(fh[0].Size)
		}
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  Đây là gì?\n"})
	}))
	defer srv.Close()

	p, err := New(srv.URL+"/", WithLanguage("vi"), WithModel("large-v3"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := p.Transcribe(context.Background(), speech)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "Đây là gì?" {
		t.Errorf("text = %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if fields["language"] != "vi" || fields["model"] != "large-v3" || fields["response_format"] != "json" {
		t.Errorf("fields = %v", fields)
	}
	if wavLen != 44+len(speech.Data) {
		t.Errorf("uploaded %d bytes, want WAV of %d", wavLen, 44+len(speech.Data))
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	if _, err := p.Transcribe(context.Background(), speech); err == nil {
		t.Error("expected error for HTTP 503")
	}
	if _, err := p.Transcribe(context.Background(), audio.Clip{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Errorf("empty clip err = %v", err)
	}
	if _, err := New(""); err == nil {
		t.Error("expected error for empty server URL")
	}
}

func TestCleanTranscript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"  hello  world ", "hello world"},
		{"[BLANK_AUDIO]", ""},
		{"(music) đọc lại", "đọc lại"},
		{"a [noise] b (cough) c", "a b c"},
		{"unterminated [bracket", "unterminated [bracket"},
	}
	for _, tt := range tests {
		if got := cleanTranscript(tt.in); got != tt.want {
			t.Errorf("cleanTranscript(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
