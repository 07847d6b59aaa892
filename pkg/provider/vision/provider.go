// Package vision defines the Provider interface for extracting printed text
// from a photo.
//
// Implementations must be safe for concurrent use.
package vision

import (
	"context"

	"github.com/MrWong99/visionreader/pkg/types"
)

// Image is an encoded photo handed to a provider.
type Image = types.Image

// Provider reads the text visible in an image.
type Provider interface {
	// ExtractText returns the text found in img. An image without legible text
	// yields an empty string and a nil error.
	ExtractText(ctx context.Context, img Image) (string, error)
}
