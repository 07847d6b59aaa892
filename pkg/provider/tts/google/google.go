// Package google provides a Google Cloud Text-to-Speech provider using the
// v1 REST API (text:synthesize) with LINEAR16 output.
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
	"github.com/MrWong99/visionreader/pkg/provider/tts"
)

const (
	defaultBaseURL    = "https://texttospeech.googleapis.com/v1"
	defaultTimeout    = 20 * time.Second
	defaultSampleRate = 24000
	synthesizePath    = "/text:synthesize"

	// maxInputBytes is the service's limit on the input text.
	maxInputBytes = 5000
)

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithSampleRate sets the requested output sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(p *Provider) { p.sampleRate = hz }
}

// Provider implements tts.Provider against Google Cloud TTS.
type Provider struct {
	apiKey     string
	baseURL    string
	sampleRate int
	httpClient *http.Client
}

// New creates a Provider authenticated with an API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type audioConfig struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Synthesize implements tts.Provider.
//
// req.Voice may be a locale ("vi-VN") or a full voice name
// ("vi-VN-Wavenet-A"); the locale is derived from the name in the latter
// case.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("google tts: empty text: %w", tts.ErrInvalidInput)
	}
	if len(text) > maxInputBytes {
		return nil, fmt.Errorf("google tts: text is %d bytes, limit %d: %w", len(text), maxInputBytes, tts.ErrInvalidInput)
	}

	body := synthesizeRequest{
		Input:       synthesisInput{Text: text},
		Voice:       selectVoice(req),
		AudioConfig: audioConfig{AudioEncoding: "LINEAR16", SampleRateHertz: p.sampleRate},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("google tts: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+synthesizePath+"?key="+p.apiKey, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("google tts: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google tts: POST %s: %w", synthesizePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &e)
		err := fmt.Errorf("google tts: POST %s returned status %d: %s", synthesizePath, resp.StatusCode, e.Error.Message)
		if resp.StatusCode == http.StatusBadRequest && e.Error.Status == "INVALID_ARGUMENT" {
			return nil, fmt.Errorf("%w: %w", err, tts.ErrInvalidInput)
		}
		return nil, err
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("google tts: decode response: %w", err)
	}
	wav, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google tts: decode audioContent: %w", err)
	}
	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("google tts: %w", err)
	}
	if clip.Empty() {
		return nil, errors.New("google tts: service returned no audio")
	}
	return &clip, nil
}

// selectVoice derives the voice selection from the request. Voice names look
// like "<lang>-<region>-<family>-<variant>"; a bare locale is used as-is.
func selectVoice(req tts.Request) voiceSelection {
	v := strings.TrimSpace(req.Voice)
	if v == "" {
		lang := req.Language
		if lang == "" {
			lang = "vi-VN"
		}
		return voiceSelection{LanguageCode: lang}
	}
	parts := strings.Split(v, "-")
	if len(parts) > 2 {
		return voiceSelection{LanguageCode: parts[0] + "-" + parts[1], Name: v}
	}
	return voiceSelection{LanguageCode: v}
}
