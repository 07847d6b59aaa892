package main

import (
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/visionreader/internal/app"
	"github.com/MrWong99/visionreader/internal/config"
	"github.com/MrWong99/visionreader/internal/resilience"
	"github.com/MrWong99/visionreader/pkg/provider/langdetect"
	googledetect "github.com/MrWong99/visionreader/pkg/provider/langdetect/google"
	"github.com/MrWong99/visionreader/pkg/provider/langdetect/script"
	"github.com/MrWong99/visionreader/pkg/provider/llm"
	"github.com/MrWong99/visionreader/pkg/provider/llm/anyllm"
	"github.com/MrWong99/visionreader/pkg/provider/llm/openai"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
	"github.com/MrWong99/visionreader/pkg/provider/stt/deepgram"
	googlestt "github.com/MrWong99/visionreader/pkg/provider/stt/google"
	"github.com/MrWong99/visionreader/pkg/provider/stt/whisper"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
	"github.com/MrWong99/visionreader/pkg/provider/tts/coqui"
	"github.com/MrWong99/visionreader/pkg/provider/tts/elevenlabs"
	googletts "github.com/MrWong99/visionreader/pkg/provider/tts/google"
	"github.com/MrWong99/visionreader/pkg/provider/vision"
	"github.com/MrWong99/visionreader/pkg/provider/vision/googlevision"
	"github.com/MrWong99/visionreader/pkg/provider/vision/llmvision"
)

const (
	geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	geminiVisionModel   = "gemini-2.0-flash"
	openaiVisionModel   = "gpt-4o-mini"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("google", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []googlestt.Option
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, googlestt.WithLanguage(lang))
		}
		if alt := e.OptionStrings("alternative_languages"); len(alt) > 0 {
			opts = append(opts, googlestt.WithAlternativeLanguages(alt...))
		}
		if e.BaseURL != "" {
			opts = append(opts, googlestt.WithBaseURL(e.BaseURL))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, googlestt.WithTimeout(d))
		}
		return googlestt.New(e.APIKey, opts...)
	})

	reg.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if e.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(e.BaseURL))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, deepgram.WithTimeout(d))
		}
		return deepgram.New(e.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(e.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(e config.ProviderEntry) (stt.Provider, error) {
		modelPath := e.Model
		if modelPath == "" {
			modelPath = e.OptionString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := e.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := e.OptionInt("threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(e config.ProviderEntry) (tts.Provider, error) {
		var opts []googletts.Option
		if e.BaseURL != "" {
			opts = append(opts, googletts.WithBaseURL(e.BaseURL))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, googletts.WithTimeout(d))
		}
		if hz := e.OptionInt("sample_rate"); hz > 0 {
			opts = append(opts, googletts.WithSampleRate(hz))
		}
		return googletts.New(e.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(e config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModel(e.Model))
		}
		if f := e.OptionString("output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		if v := e.OptionString("default_voice"); v != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(v))
		}
		if e.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(e.BaseURL))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, elevenlabs.WithTimeout(d))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(e config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if mode := e.OptionString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if e.OptionBool("send_language") {
			opts = append(opts, coqui.WithSendLanguage(true))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, coqui.WithTimeout(d))
		}
		return coqui.New(e.BaseURL, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// Every any-llm backend shares the same pattern: optional APIKey plus
	// optional BaseURL. ollama and the llama servers use only the URL.
	for _, backend := range anyllm.Backends {
		reg.RegisterLLM(backend, func(e config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(backend, e.Model, opts...)
		})
	}

	// ── Vision ────────────────────────────────────────────────────────────────

	reg.RegisterVision("googlevision", func(e config.ProviderEntry) (vision.Provider, error) {
		var opts []googlevision.Option
		if e.BaseURL != "" {
			opts = append(opts, googlevision.WithBaseURL(e.BaseURL))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, googlevision.WithTimeout(d))
		}
		if hints := e.OptionStrings("language_hints"); len(hints) > 0 {
			opts = append(opts, googlevision.WithLanguageHints(hints...))
		}
		if e.OptionBool("document_mode") {
			opts = append(opts, googlevision.WithDocumentMode())
		}
		return googlevision.New(e.APIKey, opts...)
	})

	reg.RegisterVision("openai", func(e config.ProviderEntry) (vision.Provider, error) {
		return newModelVision(e, "", openaiVisionModel)
	})

	// Gemini is reached through its OpenAI-compatible endpoint so both share
	// the image content encoding of openai-go.
	reg.RegisterVision("gemini", func(e config.ProviderEntry) (vision.Provider, error) {
		return newModelVision(e, geminiOpenAIBaseURL, geminiVisionModel)
	})

	// ── Language detection ────────────────────────────────────────────────────

	reg.RegisterLangDetect("google", func(e config.ProviderEntry) (langdetect.Detector, error) {
		var opts []googledetect.Option
		if e.BaseURL != "" {
			opts = append(opts, googledetect.WithBaseURL(e.BaseURL))
		}
		if d := e.OptionDuration("timeout"); d > 0 {
			opts = append(opts, googledetect.WithTimeout(d))
		}
		return googledetect.New(e.APIKey, opts...)
	})

	reg.RegisterLangDetect("script", func(e config.ProviderEntry) (langdetect.Detector, error) {
		d := &script.Detector{}
		if v, ok := e.Options["threshold"].(float64); ok {
			d.Threshold = v
		}
		return d, nil
	})

	for _, kind := range []string{"stt", "tts", "llm", "vision", "langdetect"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// newModelVision reads pages with a multimodal chat model over openai-go.
func newModelVision(e config.ProviderEntry, defaultBaseURL, defaultModel string) (vision.Provider, error) {
	model := e.Model
	if model == "" {
		model = defaultModel
	}
	var opts []openai.Option
	switch {
	case e.BaseURL != "":
		opts = append(opts, openai.WithBaseURL(e.BaseURL))
	case defaultBaseURL != "":
		opts = append(opts, openai.WithBaseURL(defaultBaseURL))
	}
	if org := e.OptionString("organization"); org != "" {
		opts = append(opts, openai.WithOrganization(org))
	}
	if d := e.OptionDuration("timeout"); d > 0 {
		opts = append(opts, openai.WithTimeout(d))
	}
	m, err := openai.New(e.APIKey, model, opts...)
	if err != nil {
		return nil, err
	}
	var vopts []llmvision.Option
	if p := e.OptionString("prompt"); p != "" {
		vopts = append(vopts, llmvision.WithPrompt(p))
	}
	if n := e.OptionInt("max_tokens"); n > 0 {
		vopts = append(vopts, llmvision.WithMaxTokens(n))
	}
	return llmvision.New(m, vopts...)
}

type member[T any] struct {
	name     string
	provider T
}

// createChain builds the primary provider of one kind followed by its
// fallbacks, in config order.
func createChain[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error)) ([]member[T], error) {
	entries := append([]config.ProviderEntry{entry}, entry.Fallbacks...)
	chain := make([]member[T], 0, len(entries))
	for _, e := range entries {
		p, err := create(e)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", kind, e.Name, err)
		}
		slog.Info("provider created", "kind", kind, "name", e.Name, "model", e.Model)
		chain = append(chain, member[T]{name: e.Name, provider: p})
	}
	return chain, nil
}

// buildProviders instantiates every provider named in cfg. Each required kind
// is wrapped in a fallback group, even without fallbacks, so its circuit
// breaker feeds the readiness check.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	pc := cfg.Providers
	fb := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  pc.CircuitBreaker.MaxFailures,
			ResetTimeout: pc.CircuitBreaker.ResetTimeout,
		},
	}
	ps := &app.Providers{Names: map[string]string{
		"stt":        pc.STT.Name,
		"tts":        pc.TTS.Name,
		"llm":        pc.LLM.Name,
		"vision":     pc.Vision.Name,
		"langdetect": pc.LangDetect.Name,
	}}

	sttChain, err := createChain("stt", pc.STT, reg.CreateSTT)
	if err != nil {
		return nil, err
	}
	sttGroup := resilience.NewSTTFallback(sttChain[0].provider, sttChain[0].name, fb)
	for _, m := range sttChain[1:] {
		sttGroup.AddFallback(m.name, m.provider)
	}
	ps.STT = sttGroup

	ttsChain, err := createChain("tts", pc.TTS, reg.CreateTTS)
	if err != nil {
		return nil, err
	}
	ttsGroup := resilience.NewTTSFallback(ttsChain[0].provider, ttsChain[0].name, fb)
	for _, m := range ttsChain[1:] {
		ttsGroup.AddFallback(m.name, m.provider)
	}
	ps.TTS = ttsGroup

	llmChain, err := createChain("llm", pc.LLM, reg.CreateLLM)
	if err != nil {
		return nil, err
	}
	llmGroup := resilience.NewLLMFallback(llmChain[0].provider, llmChain[0].name, fb)
	for _, m := range llmChain[1:] {
		llmGroup.AddFallback(m.name, m.provider)
	}
	ps.LLM = llmGroup

	visionChain, err := createChain("vision", pc.Vision, reg.CreateVision)
	if err != nil {
		return nil, err
	}
	visionGroup := resilience.NewVisionFallback(visionChain[0].provider, visionChain[0].name, fb)
	for _, m := range visionChain[1:] {
		visionGroup.AddFallback(m.name, m.provider)
	}
	ps.Vision = visionGroup

	if pc.LangDetect.Name != "" {
		d, err := reg.CreateLangDetect(pc.LangDetect)
		if err != nil {
			return nil, fmt.Errorf("create langdetect provider %q: %w", pc.LangDetect.Name, err)
		}
		ps.LangDetect = d
		slog.Info("provider created", "kind", "langdetect", "name", pc.LangDetect.Name)
	}
	return ps, nil
}
