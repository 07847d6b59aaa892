package orchestrator

import "github.com/MrWong99/visionreader/pkg/gpio"

// edge turns a sampled button level into press events. A press is reported
// once, on the tick where the button goes from released to pressed; holding
// the button produces no further presses.
type edge struct {
	button  gpio.Button
	pressed bool
}

func newEdge(b gpio.Button) *edge {
	return &edge{button: b, pressed: b.Pressed()}
}

// poll samples the button and reports whether this tick saw a press.
func (e *edge) poll() bool {
	now := e.button.Pressed()
	press := now && !e.pressed
	e.pressed = now
	return press
}
