// Package mock provides a test double for the langdetect.Detector interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/visionreader/pkg/provider/langdetect"
)

// Detector is a mock implementation of langdetect.Detector.
type Detector struct {
	mu sync.Mutex

	// Lang is returned by Detect.
	Lang string

	// DetectErr, if non-nil, is returned as the error from Detect.
	DetectErr error

	// DetectCalls records the text of every Detect call.
	DetectCalls []string
}

var _ langdetect.Detector = (*Detector)(nil)

// Detect implements langdetect.Detector.
func (d *Detector) Detect(_ context.Context, text string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DetectCalls = append(d.DetectCalls, text)
	if d.DetectErr != nil {
		return "", d.DetectErr
	}
	return d.Lang, nil
}

// Calls returns a copy of the recorded texts.
func (d *Detector) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.DetectCalls...)
}
