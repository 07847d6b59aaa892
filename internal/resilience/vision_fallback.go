package resilience

import (
	"context"

	"github.com/MrWong99/visionreader/pkg/provider/vision"
)

// VisionFallback is a [vision.Provider] that fails over across OCR backends.
type VisionFallback struct {
	*FallbackGroup[vision.Provider]
}

var _ vision.Provider = (*VisionFallback)(nil)

// NewVisionFallback creates a [VisionFallback] with primary tried first.
func NewVisionFallback(primary vision.Provider, primaryName string, cfg FallbackConfig) *VisionFallback {
	return &VisionFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// ExtractText implements [vision.Provider].
func (f *VisionFallback) ExtractText(ctx context.Context, img vision.Image) (string, error) {
	return ExecuteWithResult(f.FallbackGroup, func(p vision.Provider) (string, error) {
		return p.ExtractText(ctx, img)
	})
}
