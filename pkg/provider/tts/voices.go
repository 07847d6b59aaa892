package tts

import (
	"strings"

	"golang.org/x/text/language"
)

// Voices maps a base language ("vi", "en") to the voice used for it.
type Voices struct {
	byLang   map[string]string
	fallback string
}

// NewVoices builds a voice table. Keys are parsed as BCP-47 tags and reduced
// to their base language, so "vi-VN" and "vi" are the same key. Unparseable
// keys are kept verbatim in lower case. fallbackLang selects the voice used
// for languages without an entry.
func NewVoices(voices map[string]string, fallbackLang string) Voices {
	v := Voices{byLang: make(map[string]string, len(voices))}
	for lang, voice := range voices {
		v.byLang[BaseLanguage(lang)] = voice
	}
	v.fallback = v.byLang[BaseLanguage(fallbackLang)]
	return v
}

// Resolve returns the voice for lang, or the fallback voice when lang is
// unknown or empty.
func (v Voices) Resolve(lang string) string {
	if voice, ok := v.byLang[BaseLanguage(lang)]; ok {
		return voice
	}
	return v.fallback
}

// BaseLanguage reduces a tag such as "en-GB" or "VI_vn" to its base language
// subtag ("en", "vi").
func BaseLanguage(tag string) string {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	base, _ := t.Base()
	return base.String()
}
