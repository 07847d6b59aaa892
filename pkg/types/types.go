// Package types defines the values shared between providers and the
// interaction tasks. Each provider package defines its own request types;
// cross-cutting data structures live here to avoid circular imports.
package types

import "encoding/base64"

// Message is a single turn in an LLM request.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Images are attached to the message for multimodal models. Providers
	// without image support reject messages that carry images.
	Images []Image
}

// Image is an encoded still picture, typically a JPEG from the camera.
type Image struct {
	Data []byte

	// MIMEType is the IANA media type of Data (e.g. "image/jpeg").
	MIMEType string
}

// DataURL returns the image as an RFC 2397 data URL.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
