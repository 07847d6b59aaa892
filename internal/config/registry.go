package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/visionreader/pkg/provider/langdetect"
	"github.com/MrWong99/visionreader/pkg/provider/llm"
	"github.com/MrWong99/visionreader/pkg/provider/stt"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
	"github.com/MrWong99/visionreader/pkg/provider/vision"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type T from its configuration block.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is one provider kind's name → constructor table.
type factories[T any] struct {
	kind string
	m    map[string]Factory[T]
}

func (f *factories[T]) create(entry ProviderEntry) (T, error) {
	factory, ok := f.m[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return factory(entry)
}

// Registry maps provider names to constructors for each provider kind. It is
// safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	stt        factories[stt.Provider]
	tts        factories[tts.Provider]
	llm        factories[llm.Provider]
	vision     factories[vision.Provider]
	langdetect factories[langdetect.Detector]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:        factories[stt.Provider]{kind: "stt", m: map[string]Factory[stt.Provider]{}},
		tts:        factories[tts.Provider]{kind: "tts", m: map[string]Factory[tts.Provider]{}},
		llm:        factories[llm.Provider]{kind: "llm", m: map[string]Factory[llm.Provider]{}},
		vision:     factories[vision.Provider]{kind: "vision", m: map[string]Factory[vision.Provider]{}},
		langdetect: factories[langdetect.Detector]{kind: "langdetect", m: map[string]Factory[langdetect.Detector]{}},
	}
}

// RegisterSTT registers an STT factory under name, replacing any previous one.
func (r *Registry) RegisterSTT(name string, factory Factory[stt.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt.m[name] = factory
}

// RegisterTTS registers a TTS factory under name.
func (r *Registry) RegisterTTS(name string, factory Factory[tts.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts.m[name] = factory
}

// RegisterLLM registers an LLM factory under name.
func (r *Registry) RegisterLLM(name string, factory Factory[llm.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm.m[name] = factory
}

// RegisterVision registers an OCR factory under name.
func (r *Registry) RegisterVision(name string, factory Factory[vision.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vision.m[name] = factory
}

// RegisterLangDetect registers a language detector factory under name.
func (r *Registry) RegisterLangDetect(name string, factory Factory[langdetect.Detector]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langdetect.m[name] = factory
}

// CreateSTT builds the STT provider registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create(entry)
}

// CreateTTS builds the TTS provider registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(entry)
}

// CreateLLM builds the LLM provider registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateVision builds the OCR provider registered under entry.Name.
func (r *Registry) CreateVision(entry ProviderEntry) (vision.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vision.create(entry)
}

// CreateLangDetect builds the detector registered under entry.Name.
func (r *Registry) CreateLangDetect(entry ProviderEntry) (langdetect.Detector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.langdetect.create(entry)
}

// Names returns the sorted names registered for kind ("stt", "tts", "llm",
// "vision" or "langdetect").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "stt":
		names = keys(r.stt.m)
	case "tts":
		names = keys(r.tts.m)
	case "llm":
		names = keys(r.llm.m)
	case "vision":
		names = keys(r.vision.m)
	case "langdetect":
		names = keys(r.langdetect.m)
	}
	slices.Sort(names)
	return names
}

func keys[T any](m map[string]Factory[T]) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
