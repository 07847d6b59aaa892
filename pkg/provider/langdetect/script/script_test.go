package script_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/visionreader/pkg/provider/langdetect/script"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "vietnamese", text: "Xin chào, tôi có thể giúp gì cho bạn?", want: "vi"},
		{name: "vietnamese d-bar only", text: "đi đâu", want: "vi"},
		{name: "english", text: "It says hello.", want: "en"},
		{name: "english with one accent", text: "The café on the corner sells very good coffee and bread", want: "en"},
		{name: "decomposed vietnamese", text: "Việt Nam", want: "vi"},
	}
	d := &script.Detector{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := d.Detect(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetect_Undetermined(t *testing.T) {
	t.Parallel()

	d := &script.Detector{}
	for _, text := range []string{"", "123 456 !!!", "こんにちは世界"} {
		if _, err := d.Detect(context.Background(), text); !errors.Is(err, script.ErrUndetermined) {
			t.Errorf("Detect(%q) err = %v, want ErrUndetermined", text, err)
		}
	}
}
