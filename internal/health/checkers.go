package health

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/MrWong99/visionreader/pkg/gpio"
)

// Binary checks that an external program is on PATH, such as the audio
// player or the camera tool.
func Binary(name, binary string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if binary == "" {
				return errors.New("no command configured")
			}
			if _, err := exec.LookPath(binary); err != nil {
				return fmt.Errorf("%s not found: %w", binary, err)
			}
			return nil
		},
	}
}

// Buttons checks that every button of the panel is wired. Reading a level
// is the only check a momentary input allows.
func Buttons(panel gpio.Panel) Checker {
	return Checker{
		Name: "gpio",
		Check: func(context.Context) error {
			var missing []string
			for label, b := range map[string]gpio.Button{"chat": panel.Chat, "ocr": panel.OCR, "pause": panel.Pause} {
				if b == nil {
					missing = append(missing, label)
					continue
				}
				_ = b.Pressed()
			}
			if len(missing) > 0 {
				slices.Sort(missing)
				return fmt.Errorf("buttons not wired: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

// Availability is implemented by provider groups guarded by circuit
// breakers.
type Availability interface {
	Available() bool
}

// Providers fails when any provider kind has every breaker open.
func Providers(kinds map[string]Availability) Checker {
	return Checker{
		Name: "providers",
		Check: func(context.Context) error {
			var down []string
			for kind, a := range kinds {
				if a != nil && !a.Available() {
					down = append(down, kind)
				}
			}
			if len(down) > 0 {
				slices.Sort(down)
				return fmt.Errorf("all circuits open: %s", strings.Join(down, ", "))
			}
			return nil
		},
	}
}
