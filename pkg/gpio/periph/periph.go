// Package periph implements [gpio.Button] on top of periph.io, which drives the
// Raspberry Pi GPIO block through /dev/gpiomem without a daemon.
//
// Usage:
//
//	bank, err := periph.Open(periph.PinNames{Chat: "GPIO26", OCR: "GPIO12", Pause: "GPIO25"})
//	defer bank.Close()
//	panel := bank.Panel()
package periph

import (
	"errors"
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/MrWong99/visionreader/pkg/gpio"
)

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// PinNames selects the periph pin names (e.g. "GPIO26") for each button.
type PinNames struct {
	Chat  string
	OCR   string
	Pause string
}

// Option configures [Open].
type Option func(*Bank)

// WithActiveHigh treats a high level as pressed and configures pull-downs.
// The default is active-low with pull-ups.
func WithActiveHigh() Option {
	return func(b *Bank) { b.activeLow = false }
}

// Bank owns the three configured pins.
type Bank struct {
	activeLow bool
	chat      *button
	ocr       *button
	pause     *button
}

// Open initialises the host drivers once per process and configures each pin
// as an input with the pull resistor matching the polarity.
func Open(names PinNames, opts ...Option) (*Bank, error) {
	b := &Bank{activeLow: true}
	for _, o := range opts {
		o(b)
	}
	if err := initOnce(); err != nil {
		return nil, fmt.Errorf("periph: host init: %w", err)
	}

	var err error
	if b.chat, err = b.open("chat", names.Chat); err != nil {
		return nil, err
	}
	if b.ocr, err = b.open("ocr", names.OCR); err != nil {
		_ = b.Close()
		return nil, err
	}
	if b.pause, err = b.open("pause", names.Pause); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bank) open(role, name string) (*button, error) {
	if name == "" {
		return nil, fmt.Errorf("periph: %s pin name must not be empty", role)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s (%s)", gpio.ErrPinNotFound, name, role)
	}
	pull := pgpio.PullUp
	if !b.activeLow {
		pull = pgpio.PullDown
	}
	if err := pin.In(pull, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("periph: configure %s (%s): %w", name, role, err)
	}
	return &button{role: role, pin: pin, activeLow: b.activeLow}, nil
}

// Panel returns the buttons as a [gpio.Panel].
func (b *Bank) Panel() gpio.Panel {
	return gpio.Panel{Chat: b.chat, OCR: b.ocr, Pause: b.pause}
}

// Close halts every configured pin. It is safe to call more than once.
func (b *Bank) Close() error {
	var errs []error
	for _, btn := range []*button{b.chat, b.ocr, b.pause} {
		if btn == nil {
			continue
		}
		if err := btn.pin.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("periph: halt %s: %w", btn.pin.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type button struct {
	role      string
	pin       pgpio.PinIO
	activeLow bool
}

var _ gpio.Button = (*button)(nil)

func (b *button) Name() string { return b.role }

func (b *button) Pressed() bool {
	level := b.pin.Read()
	if b.activeLow {
		return level == pgpio.Low
	}
	return level == pgpio.High
}
