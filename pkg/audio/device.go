package audio

import (
	"context"
	"io"
	"strconv"
	"strings"
)

// Player starts playback of a clip on an output device. Implementations are
// not required to mix: callers must hold at most one live [Playback] at a time.
type Player interface {
	// Play begins asynchronous playback of c and returns a handle. Play does
	// not block until playback completes.
	Play(ctx context.Context, c Clip) (Playback, error)
}

// Playback is a handle on one in-progress clip.
//
// After Done is closed the device has released the clip. Stop is idempotent
// and blocks until the device is idle.
type Playback interface {
	Pause() error
	Resume() error
	Stop() error

	// Done is closed when playback ends for any reason.
	Done() <-chan struct{}

	// Err reports why playback ended. It is nil for natural completion and for
	// an explicit Stop, and only meaningful after Done is closed.
	Err() error
}

// Recorder opens a live capture stream from an input device.
type Recorder interface {
	Record(ctx context.Context) (Recording, error)
}

// Recording is a live PCM capture stream. Close stops the device.
type Recording interface {
	io.Reader
	Format() Format
	Close() error
}

// expandArgs substitutes {rate} and {channels} placeholders in a command
// template with the values from f.
func expandArgs(args []string, f Format) []string {
	r := strings.NewReplacer(
		"{rate}", strconv.Itoa(f.SampleRate),
		"{channels}", strconv.Itoa(f.Channels),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}
