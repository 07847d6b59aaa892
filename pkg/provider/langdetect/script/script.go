// Package script detects Vietnamese and English offline by looking at the
// letters a text uses. It covers the two languages the device speaks and
// serves as the fallback when no network detector is configured.
package script

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/visionreader/pkg/provider/langdetect"
)

// ErrUndetermined is returned when the text has no letters to judge.
var ErrUndetermined = errors.New("script: language undetermined")

// vietnameseLetters are base letters that only occur in Vietnamese among the
// Latin-script languages the device handles.
const vietnameseLetters = "ăâđêôơưĂÂĐÊÔƠƯ"

// Detector classifies Latin-script text as Vietnamese when enough of its
// letters carry Vietnamese diacritics, and as English otherwise.
type Detector struct {
	// Threshold is the share of diacritic letters above which text counts as
	// Vietnamese. Zero uses 0.05.
	Threshold float64
}

var _ langdetect.Detector = (*Detector)(nil)

// Detect implements langdetect.Detector.
func (d *Detector) Detect(_ context.Context, text string) (string, error) {
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = 0.05
	}

	var letters, marked, other int
	// NFD splits "ế" into "e" + circumflex + acute so tone marks become
	// combining runes.
	for _, r := range norm.NFD.String(text) {
		switch {
		case unicode.Is(unicode.Mn, r):
			marked++
		case strings.ContainsRune(vietnameseLetters, r):
			letters++
			marked++
		case unicode.IsLetter(r):
			letters++
			if !unicode.Is(unicode.Latin, r) {
				other++
			}
		}
	}
	if letters == 0 {
		return "", ErrUndetermined
	}
	if other*2 > letters {
		return "", ErrUndetermined
	}
	if float64(marked)/float64(letters) >= threshold {
		return "vi", nil
	}
	return "en", nil
}
