// Package mock provides a scriptable [gpio.Button] for tests.
package mock

import (
	"sync"

	"github.com/MrWong99/visionreader/pkg/gpio"
)

// Button is a mock [gpio.Button] whose level is set by the test.
type Button struct {
	mu      sync.Mutex
	name    string
	pressed bool
	reads   int
}

var _ gpio.Button = (*Button)(nil)

// NewButton returns a released button.
func NewButton(name string) *Button { return &Button{name: name} }

// Name implements [gpio.Button].
func (b *Button) Name() string { return b.name }

// Pressed implements [gpio.Button].
func (b *Button) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	return b.pressed
}

// Set changes the level returned by subsequent reads.
func (b *Button) Set(pressed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pressed = pressed
}

// Reads returns how many times Pressed has been called.
func (b *Button) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

// NewPanel returns a panel of three released mock buttons.
func NewPanel() (gpio.Panel, *Button, *Button, *Button) {
	chat, ocr, pause := NewButton("chat"), NewButton("ocr"), NewButton("pause")
	return gpio.Panel{Chat: chat, OCR: ocr, Pause: pause}, chat, ocr, pause
}
