// Package google detects languages with the Google Cloud Translation v2
// REST API (language/translate/v2/detect).
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/MrWong99/visionreader/pkg/provider/langdetect"
)

const (
	defaultBaseURL = "https://translation.googleapis.com/language/translate/v2"
	defaultTimeout = 10 * time.Second
	detectPath     = "/detect"

	// sampleRunes bounds the text sent for detection; a page of OCR output
	// is far more than the service needs.
	sampleRunes = 500
)

var _ langdetect.Detector = (*Detector)(nil)

// Option is a functional option for configuring the Detector.
type Option func(*Detector)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(d *Detector) { d.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Detector) { d.httpClient.Timeout = t }
}

// Detector implements langdetect.Detector against Google Translate.
type Detector struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a Detector authenticated with an API key.
func New(apiKey string, opts ...Option) (*Detector, error) {
	if apiKey == "" {
		return nil, errors.New("langdetect google: apiKey must not be empty")
	}
	d := &Detector{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

type detectResponse struct {
	Data struct {
		Detections [][]struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

// Detect implements langdetect.Detector.
func (d *Detector) Detect(ctx context.Context, text string) (string, error) {
	text = truncateRunes(strings.TrimSpace(text), sampleRunes)
	if text == "" {
		return "", errors.New("langdetect google: empty text")
	}
	body, err := json.Marshal(map[string]string{"q": text})
	if err != nil {
		return "", fmt.Errorf("langdetect google: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+detectPath+"?key="+d.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("langdetect google: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("langdetect google: POST %s: %w", detectPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("langdetect google: POST %s returned status %d", detectPath, resp.StatusCode)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("langdetect google: decode response: %w", err)
	}
	if len(out.Data.Detections) == 0 || len(out.Data.Detections[0]) == 0 {
		return "", errors.New("langdetect google: no detection returned")
	}
	best := out.Data.Detections[0][0]
	for _, det := range out.Data.Detections[0][1:] {
		if det.Confidence > best.Confidence {
			best = det
		}
	}
	if best.Language == "" || best.Language == "und" {
		return "", errors.New("langdetect google: language undetermined")
	}
	tag, err := language.Parse(best.Language)
	if err != nil {
		return "", fmt.Errorf("langdetect google: parse %q: %w", best.Language, err)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
