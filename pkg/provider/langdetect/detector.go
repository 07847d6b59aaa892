// Package langdetect defines the Detector interface used to pick the voice
// for a piece of text before it is spoken.
package langdetect

import "context"

// Detector identifies the language of a text.
type Detector interface {
	// Detect returns the ISO 639-1 base language of text ("vi", "en", ...).
	Detect(ctx context.Context, text string) (string, error)
}
