// Package mock provides a test double for the camera.Camera interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/visionreader/pkg/camera"
	"github.com/MrWong99/visionreader/pkg/types"
)

// Camera is a mock implementation of camera.Camera.
type Camera struct {
	mu sync.Mutex

	// Image is returned by Capture.
	Image types.Image

	// CaptureErr, if non-nil, is returned as the error from Capture.
	CaptureErr error

	// CaptureCalls counts Capture invocations.
	CaptureCalls int
}

var _ camera.Camera = (*Camera)(nil)

// Capture implements camera.Camera.
func (c *Camera) Capture(_ context.Context) (types.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CaptureCalls++
	if c.CaptureErr != nil {
		return types.Image{}, c.CaptureErr
	}
	return c.Image, nil
}

// Calls returns the number of Capture invocations.
func (c *Camera) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CaptureCalls
}
