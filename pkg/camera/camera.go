// Package camera captures still photos for text recognition.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/MrWong99/visionreader/pkg/types"
)

// ErrNotReady reports that the camera could not produce a photo: the capture
// command is missing, exited non-zero, timed out, or left no image behind.
var ErrNotReady = errors.New("camera: not ready")

// DefaultCommand photographs one frame with the Raspberry Pi camera stack.
// {path} is replaced with the configured image path.
var DefaultCommand = []string{"rpicam-jpeg", "--nopreview", "-t", "1", "--output", "{path}"}

const (
	// DefaultImagePath is where the capture command writes the photo.
	DefaultImagePath = "/tmp/visionreader.jpg"

	defaultTimeout = 10 * time.Second
)

// Camera takes one photo per call.
type Camera interface {
	Capture(ctx context.Context) (types.Image, error)
}

// Option configures an [ExecCamera].
type Option func(*ExecCamera)

// WithImagePath sets the file the capture command writes to.
func WithImagePath(path string) Option {
	return func(c *ExecCamera) { c.imagePath = path }
}

// WithTimeout bounds one capture. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *ExecCamera) { c.timeout = d }
}

// ExecCamera runs an external capture program and reads the photo back from
// disk.
type ExecCamera struct {
	command   []string
	imagePath string
	timeout   time.Duration
}

var _ Camera = (*ExecCamera)(nil)

// NewExecCamera returns a camera running command. Arguments may contain the
// placeholder {path}.
func NewExecCamera(command []string, opts ...Option) (*ExecCamera, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("camera: command must not be empty")
	}
	c := &ExecCamera{
		command:   command,
		imagePath: DefaultImagePath,
		timeout:   defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.imagePath == "" {
		return nil, errors.New("camera: image path must not be empty")
	}
	return c, nil
}

// Binary returns the executable name the camera runs.
func (c *ExecCamera) Binary() string { return c.command[0] }

// Capture implements [Camera]. Any failure is wrapped around [ErrNotReady].
func (c *ExecCamera) Capture(ctx context.Context) (types.Image, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// A stale photo from the previous press must never be read back.
	if err := os.Remove(c.imagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("camera: remove stale image", "path", c.imagePath, "err", err)
	}

	args := make([]string, len(c.command)-1)
	for i, a := range c.command[1:] {
		args[i] = strings.ReplaceAll(a, "{path}", c.imagePath)
	}
	cmd := exec.CommandContext(ctx, c.command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return types.Image{}, fmt.Errorf("%w: %s: %w: %s",
			ErrNotReady, c.command[0], err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(c.imagePath)
	if err != nil {
		return types.Image{}, fmt.Errorf("%w: read %s: %w", ErrNotReady, c.imagePath, err)
	}
	if len(data) == 0 {
		return types.Image{}, fmt.Errorf("%w: %s is empty", ErrNotReady, c.imagePath)
	}
	slog.Debug("camera: captured", "bytes", len(data), "elapsed", time.Since(start))

	return types.Image{Data: data, MIMEType: http.DetectContentType(data)}, nil
}
