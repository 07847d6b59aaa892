package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/visionreader/pkg/gpio"
	gpiomock "github.com/MrWong99/visionreader/pkg/gpio/mock"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "broken", Check: func(context.Context) error { return errors.New("down") }})
	code, body := serve(t, h, "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("got %d %q, want 200 ok", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{name: "no checkers", wantStatus: http.StatusOK},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "gpio", Check: ok}, {Name: "player", Check: ok}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"gpio": "ok", "player": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "gpio", Check: ok},
				{Name: "camera", Check: func(context.Context) error { return errors.New("rpicam-jpeg not found") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"gpio": "ok", "camera": "fail: rpicam-jpeg not found"},
		},
		{
			name: "respects timeout context",
			checkers: []Checker{{Name: "slow", Check: func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					return errors.New("no deadline")
				}
				return nil
			}}},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"slow": "ok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, New(tt.checkers...), "/readyz")
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %q = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestBinary(t *testing.T) {
	t.Parallel()
	if err := Binary("player", "sh").Check(context.Background()); err != nil {
		t.Errorf("sh: %v", err)
	}
	if err := Binary("camera", "visionreader-no-such-tool").Check(context.Background()); err == nil {
		t.Error("expected error for a missing binary")
	}
	if err := Binary("camera", "").Check(context.Background()); err == nil {
		t.Error("expected error for an empty command")
	}
}

func TestButtons(t *testing.T) {
	t.Parallel()
	panel, _, _, _ := gpiomock.NewPanel()
	if err := Buttons(panel).Check(context.Background()); err != nil {
		t.Errorf("wired panel: %v", err)
	}

	err := Buttons(gpio.Panel{Chat: panel.Chat}).Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ocr, pause") {
		t.Errorf("err = %v, want missing ocr, pause", err)
	}
}

type availability bool

func (a availability) Available() bool { return bool(a) }

func TestProviders(t *testing.T) {
	t.Parallel()
	up := map[string]Availability{"stt": availability(true), "tts": availability(true)}
	if err := Providers(up).Check(context.Background()); err != nil {
		t.Errorf("all available: %v", err)
	}

	down := map[string]Availability{"stt": availability(true), "llm": availability(false), "tts": availability(false)}
	err := Providers(down).Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "llm, tts") {
		t.Errorf("err = %v, want llm, tts down", err)
	}
}
