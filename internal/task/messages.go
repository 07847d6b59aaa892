package task

// Apology is the closed set of failure conditions that end a task with a
// spoken message.
type Apology int

const (
	// ApologyGeneric covers any service error.
	ApologyGeneric Apology = iota
	ApologyNotUnderstood
	ApologyNoAnswer
	ApologyCameraNotReady
	ApologyNoText
	ApologySpeechError
)

// String returns the apology label used in logs.
func (a Apology) String() string {
	switch a {
	case ApologyGeneric:
		return "generic_error"
	case ApologyNotUnderstood:
		return "not_understood"
	case ApologyNoAnswer:
		return "no_answer"
	case ApologyCameraNotReady:
		return "camera_not_ready"
	case ApologyNoText:
		return "no_text"
	case ApologySpeechError:
		return "speech_error"
	}
	return "unknown"
}

// Messages holds every fixed phrase the device speaks.
type Messages struct {
	Greeting       string
	Scanning       string
	NotUnderstood  string
	NoAnswer       string
	GenericError   string
	SpeechError    string
	CameraNotReady string
	NoText         string
}

// DefaultMessages returns the built-in Vietnamese phrases.
func DefaultMessages() Messages {
	return Messages{
		Greeting:       "Xin chào, tôi có thể giúp gì cho bạn?",
		Scanning:       "Đang quét văn bản, vui lòng chờ...",
		NotUnderstood:  "Tôi không nghe rõ, bạn có thể nói lại không?",
		NoAnswer:       "Xin lỗi, tôi chưa thể trả lời câu hỏi này.",
		GenericError:   "Đã xảy ra lỗi, vui lòng thử lại.",
		SpeechError:    "Đã xảy ra lỗi trong quá trình đọc văn bản.",
		CameraNotReady: "Camera chưa sẵn sàng.",
		NoText:         "Không phát hiện được văn bản, vui lòng thử lại.",
	}
}

// WithDefaults returns m with every empty phrase replaced by its default.
func (m Messages) WithDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Greeting, d.Greeting)
	fill(&m.Scanning, d.Scanning)
	fill(&m.NotUnderstood, d.NotUnderstood)
	fill(&m.NoAnswer, d.NoAnswer)
	fill(&m.GenericError, d.GenericError)
	fill(&m.SpeechError, d.SpeechError)
	fill(&m.CameraNotReady, d.CameraNotReady)
	fill(&m.NoText, d.NoText)
	return m
}

// For returns the phrase spoken for a.
func (m Messages) For(a Apology) string {
	switch a {
	case ApologyNotUnderstood:
		return m.NotUnderstood
	case ApologyNoAnswer:
		return m.NoAnswer
	case ApologyCameraNotReady:
		return m.CameraNotReady
	case ApologyNoText:
		return m.NoText
	case ApologySpeechError:
		return m.SpeechError
	}
	return m.GenericError
}
