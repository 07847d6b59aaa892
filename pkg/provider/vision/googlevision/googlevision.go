// Package googlevision reads text from photos with the Google Cloud Vision
// REST API (images:annotate, TEXT_DETECTION).
//
//	p, err := googlevision.New(apiKey, googlevision.WithLanguageHints("vi", "en"))
//	text, err := p.ExtractText(ctx, img)
package googlevision

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

	"github.com/MrWong99/visionreader/pkg/provider/vision"
)

const (
	defaultBaseURL = "https://vision.googleapis.com/v1"
	defaultTimeout = 30 * time.Second
	annotatePath   = "/images:annotate"
)

var _ vision.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithLanguageHints passes BCP-47 language hints to the OCR engine.
func WithLanguageHints(langs ...string) Option {
	return func(p *Provider) { p.hints = langs }
}

// WithDocumentMode switches to DOCUMENT_TEXT_DETECTION, which suits dense
// printed pages better than the default sparse text detection.
func WithDocumentMode() Option {
	return func(p *Provider) { p.feature = "DOCUMENT_TEXT_DETECTION" }
}

// Provider implements vision.Provider against Google Cloud Vision.
type Provider struct {
	apiKey     string
	baseURL    string
	feature    string
	hints      []string
	httpClient *http.Client
}

// New creates a Provider authenticated with an API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("googlevision: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		feature:    "TEXT_DETECTION",
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imageContent  `json:"image"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imageContent struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
		TextAnnotations []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// ExtractText implements vision.Provider.
func (p *Provider) ExtractText(ctx context.Context, img vision.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("googlevision: image is empty")
	}

	body := annotateRequest{Requests: []imageRequest{{
		Image:    imageContent{Content: base64.StdEncoding.EncodeToString(img.Data)},
		Features: []feature{{Type: p.feature}},
	}}}
	if len(p.hints) > 0 {
		body.Requests[0].ImageContext = &imageContext{LanguageHints: p.hints}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("googlevision: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+annotatePath+"?key="+p.apiKey, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("googlevision: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("googlevision: POST %s: %w", annotatePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("googlevision: POST %s returned status %d: %s", annotatePath, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("googlevision: decode response: %w", err)
	}
	if len(out.Responses) == 0 {
		return "", nil
	}
	r := out.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return "", fmt.Errorf("googlevision: annotate error %d: %s", r.Error.Code, r.Error.Message)
	}
	if r.FullTextAnnotation != nil {
		return strings.TrimSpace(r.FullTextAnnotation.Text), nil
	}
	// The first text annotation spans the whole image.
	if len(r.TextAnnotations) > 0 {
		return strings.TrimSpace(r.TextAnnotations[0].Description), nil
	}
	return "", nil
}
