// Package mock provides a test double for the vision.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/visionreader/pkg/provider/vision"
)

// Provider is a mock implementation of vision.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is returned by ExtractText.
	Text string

	// ExtractErr, if non-nil, is returned as the error from ExtractText.
	ExtractErr error

	// ExtractCalls records the image passed to every ExtractText call.
	ExtractCalls []vision.Image
}

var _ vision.Provider = (*Provider)(nil)

// ExtractText implements vision.Provider.
func (p *Provider) ExtractText(_ context.Context, img vision.Image) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = append(p.ExtractCalls, img)
	if p.ExtractErr != nil {
		return "", p.ExtractErr
	}
	return p.Text, nil
}

// CallCount returns the number of ExtractText invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ExtractCalls)
}
