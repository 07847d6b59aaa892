// Package google provides speech recognition through the Google Cloud
// Speech-to-Text v1 REST API (speech:recognize).
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/visionreader/pkg/audio"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
)

const (
	defaultBaseURL  = "https://speech.googleapis.com/v1"
	defaultLanguage = "vi-VN"
	defaultTimeout  = 30 * time.Second
	recognizePath   = "/speech:recognize"

	// maxSyncDuration is the longest clip the synchronous endpoint accepts.
	maxSyncDuration = time.Minute
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLanguage sets the recognition locale (e.g., "vi-VN", "en-US").
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithAlternativeLanguages lets the service pick among extra locales.
func WithAlternativeLanguages(langs ...string) Option {
	return func(p *Provider) { p.alternatives = langs }
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements stt.Provider against Google Cloud Speech-to-Text.
type Provider struct {
	apiKey       string
	baseURL      string
	language     string
	alternatives []string
	httpClient   *http.Client
}

// New creates a Provider authenticated with an API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google stt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding                   string   `json:"encoding"`
	SampleRateHertz            int      `json:"sampleRateHertz"`
	AudioChannelCount          int      `json:"audioChannelCount"`
	LanguageCode               string   `json:"languageCode"`
	AlternativeLanguageCodes   []string `json:"alternativeLanguageCodes,omitempty"`
	EnableAutomaticPunctuation bool     `json:"enableAutomaticPunctuation"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	if clip.Empty() {
		return "", stt.ErrEmptyAudio
	}
	if d := clip.Duration(); d > maxSyncDuration {
		return "", fmt.Errorf("google stt: clip is %v, synchronous limit is %v", d, maxSyncDuration)
	}

	body := recognizeRequest{
		Config: recognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            clip.Format.SampleRate,
			AudioChannelCount:          clip.Format.Channels,
			LanguageCode:               p.language,
			AlternativeLanguageCodes:   p.alternatives,
			EnableAutomaticPunctuation: true,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(clip.Data)},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("google stt: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+recognizePath+"?key="+p.apiKey, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("google stt: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google stt: POST %s: %w", recognizePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("google stt: POST %s returned status %d: %s", recognizePath, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("google stt: decode response: %w", err)
	}
	var parts []string
	for _, r := range out.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
