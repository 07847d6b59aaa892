package googlevision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/visionreader/pkg/provider/vision"
)

func newTestServer(t *testing.T, status int, body string, check func(*http.Request, annotateRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req annotateRequest
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &req)
		if check != nil {
			check(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "full text annotation",
			body: `{"responses":[{"fullTextAnnotation":{"text":"Xin chào\nthế giới\n"}}]}`,
			want: "Xin chào\nthế giới",
		},
		{
			name: "text annotations only",
			body: `{"responses":[{"textAnnotations":[{"description":"STOP "},{"description":"STOP"}]}]}`,
			want: "STOP",
		},
		{
			name: "no text",
			body: `{"responses":[{}]}`,
			want: "",
		},
		{
			name: "no responses",
			body: `{"responses":[]}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(t, http.StatusOK, tt.body, nil)
			p, _ := New("key", WithBaseURL(srv.URL))
			got, err := p.ExtractText(context.Background(), vision.Image{Data: []byte{1, 2}})
			if err != nil {
				t.Fatalf("ExtractText: %v", err)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractText_RequestShape(t *testing.T) {
	t.Parallel()

	var gotKey string
	var gotReq annotateRequest
	srv := newTestServer(t, http.StatusOK, `{"responses":[{}]}`, func(r *http.Request, req annotateRequest) {
		gotKey = r.URL.Query().Get("key")
		gotReq = req
	})
	p, _ := New("secret", WithBaseURL(srv.URL+"/"), WithLanguageHints("vi", "en"), WithDocumentMode())
	if _, err := p.ExtractText(context.Background(), vision.Image{Data: []byte("jpeg")}); err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("key = %q", gotKey)
	}
	if len(gotReq.Requests) != 1 {
		t.Fatalf("requests = %d", len(gotReq.Requests))
	}
	r := gotReq.Requests[0]
	if r.Image.Content != "anBlZw==" {
		t.Errorf("image content = %q", r.Image.Content)
	}
	if len(r.Features) != 1 || r.Features[0].Type != "DOCUMENT_TEXT_DETECTION" {
		t.Errorf("features = %+v", r.Features)
	}
	if r.ImageContext == nil || strings.Join(r.ImageContext.LanguageHints, ",") != "vi,en" {
		t.Errorf("image context = %+v", r.ImageContext)
	}
}

func TestExtractText_Errors(t *testing.T) {
	t.Parallel()

	t.Run("http status", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, http.StatusForbidden, `{"error":"denied"}`, nil)
		p, _ := New("key", WithBaseURL(srv.URL))
		_, err := p.ExtractText(context.Background(), vision.Image{Data: []byte{1}})
		if err == nil || !strings.Contains(err.Error(), "403") {
			t.Errorf("err = %v, want status error", err)
		}
	})
	t.Run("per image error", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, http.StatusOK, `{"responses":[{"error":{"code":3,"message":"Bad image data."}}]}`, nil)
		p, _ := New("key", WithBaseURL(srv.URL))
		_, err := p.ExtractText(context.Background(), vision.Image{Data: []byte{1}})
		if err == nil || !strings.Contains(err.Error(), "Bad image data") {
			t.Errorf("err = %v, want annotate error", err)
		}
	})
	t.Run("empty image", func(t *testing.T) {
		t.Parallel()
		p, _ := New("key")
		if _, err := p.ExtractText(context.Background(), vision.Image{}); err == nil {
			t.Error("expected error for empty image")
		}
	})
	t.Run("missing key", func(t *testing.T) {
		t.Parallel()
		if _, err := New(""); err == nil {
			t.Error("expected error for empty api key")
		}
	})
}
