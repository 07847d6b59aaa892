package task

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultRepeatThreshold is the minimum Jaro-Winkler similarity for a
	// transcript to count as a repeat command.
	DefaultRepeatThreshold = 0.88

	// repeatExtraWords bounds how much longer than a phrase a transcript may
	// be; longer transcripts are questions, not commands.
	repeatExtraWords = 2
)

// DefaultRepeatPhrases ask the device to read the last scanned page again.
var DefaultRepeatPhrases = []string{"đọc lại", "read again"}

// RepeatCommand recognises a spoken request to re-read the last scan.
type RepeatCommand struct {
	phrases   []string
	threshold float64
}

// NewRepeatCommand builds a matcher. Empty phrases are ignored and a
// non-positive threshold selects [DefaultRepeatThreshold]. A command without
// phrases never matches.
func NewRepeatCommand(phrases []string, threshold float64) RepeatCommand {
	if threshold <= 0 {
		threshold = DefaultRepeatThreshold
	}
	rc := RepeatCommand{threshold: threshold}
	for _, p := range phrases {
		if n := normalizeUtterance(p); n != "" {
			rc.phrases = append(rc.phrases, n)
		}
	}
	return rc
}

// Match reports whether transcript is a repeat command.
func (rc RepeatCommand) Match(transcript string) bool {
	t := normalizeUtterance(transcript)
	if t == "" {
		return false
	}
	words := len(strings.Fields(t))
	for _, p := range rc.phrases {
		if words > len(strings.Fields(p))+repeatExtraWords {
			continue
		}
		if t == p || matchr.JaroWinkler(t, p, false) >= rc.threshold {
			return true
		}
	}
	return false
}

// normalizeUtterance lower-cases s, drops punctuation, and collapses runs of
// whitespace.
func normalizeUtterance(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
