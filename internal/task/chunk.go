package task

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUtteranceBytes bounds the text handed to the speaker in one call. It
// stays under the smallest request limit of the supported speech services
// (Google: 5000 bytes).
const MaxUtteranceBytes = 4500

// splitSpeech cuts text into pieces of at most limit bytes, preferring
// sentence ends, then line breaks, then spaces. A run with no break at all is
// cut on a rune boundary. Pieces are trimmed and never empty.
func splitSpeech(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	for len(text) > limit {
		cut := breakBefore(text, limit)
		if piece := strings.TrimSpace(text[:cut]); piece != "" {
			out = append(out, piece)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// breakBefore returns the index at which to cut text so the head fits in
// limit bytes.
func breakBefore(text string, limit int) int {
	head := text[:limit]
	for i := len(head) - 1; i > 0; i-- {
		if isSentenceEnd(head[i]) && isSpace(text[i+1]) {
			return i + 1
		}
	}
	if i := strings.LastIndexByte(head, '\n'); i > 0 {
		return i + 1
	}
	if i := strings.LastIndexFunc(head, unicode.IsSpace); i > 0 {
		return i + 1
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, cut = utf8.DecodeRuneInString(text)
	}
	return cut
}

func isSentenceEnd(b byte) bool { return b == '.' || b == '!' || b == '?' || b == ';' }

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\t' || b == '\r' }
