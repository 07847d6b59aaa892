// Package gpio defines the momentary push-button inputs the device reads on
// every poll tick.
package gpio

import "errors"

// ErrPinNotFound is returned when a configured pin name is unknown to the
// host's GPIO registry.
var ErrPinNotFound = errors.New("gpio: pin not found")

// Button is a single momentary input. Pressed reports the instantaneous
// logical level, already corrected for the wiring polarity: true means the
// button is held down right now. Implementations perform no debouncing.
type Button interface {
	Name() string
	Pressed() bool
}

// Panel groups the three buttons of the device.
type Panel struct {
	Chat  Button
	OCR   Button
	Pause Button
}
