package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultRecorderCommand captures raw PCM from the default ALSA input.
var DefaultRecorderCommand = []string{
	"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "{rate}", "-c", "{channels}",
}

// DefaultCaptureFormat is the format speech recognisers expect.
var DefaultCaptureFormat = Format{SampleRate: 16000, Channels: 1}

const (
	defaultStartupGrace = 100 * time.Millisecond
	stopGrace           = 1200 * time.Millisecond
)

// RecorderOption configures an [ExecRecorder].
type RecorderOption func(*ExecRecorder)

// WithCaptureFormat sets the capture format. Defaults to 16 kHz mono.
func WithCaptureFormat(f Format) RecorderOption {
	return func(r *ExecRecorder) { r.format = f }
}

// WithStartupGrace sets how long Record waits for the subprocess to fail
// before handing out the stream. Defaults to 100 ms.
func WithStartupGrace(d time.Duration) RecorderOption {
	return func(r *ExecRecorder) { r.startupGrace = d }
}

// ExecRecorder captures microphone audio by reading the stdout of a
// subprocess such as arecord or ffmpeg.
type ExecRecorder struct {
	command      []string
	format       Format
	startupGrace time.Duration
}

var _ Recorder = (*ExecRecorder)(nil)

// NewExecRecorder returns a recorder running command. Arguments may contain
// the placeholders {rate} and {channels}.
func NewExecRecorder(command []string, opts ...RecorderOption) (*ExecRecorder, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("audio: recorder command must not be empty")
	}
	r := &ExecRecorder{
		command:      command,
		format:       DefaultCaptureFormat,
		startupGrace: defaultStartupGrace,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Record implements [Recorder].
func (r *ExecRecorder) Record(ctx context.Context) (Recording, error) {
	cmd := exec.CommandContext(ctx, r.command[0], expandArgs(r.command[1:], r.format)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// The read end stays open after Wait so buffered samples survive the
	// subprocess exiting on its own.
	stdout, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("audio: recorder stdout pipe: %w", err)
	}
	cmd.Stdout = pw
	err = cmd.Start()
	pw.Close()
	if err != nil {
		stdout.Close()
		return nil, fmt.Errorf("audio: start %s: %w", r.command[0], err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	if r.startupGrace > 0 {
		select {
		case err := <-waitErr:
			stdout.Close()
			if err != nil {
				return nil, fmt.Errorf("audio: %s exited before capture started: %w: %s",
					r.command[0], err, strings.TrimSpace(stderr.String()))
			}
			return nil, fmt.Errorf("audio: %s exited before capture started", r.command[0])
		case <-time.After(r.startupGrace):
		}
	}

	return &execRecording{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		format:  r.format,
	}, nil
}

type execRecording struct {
	stdout  *os.File
	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error
	format  Format

	stopOnce sync.Once
	stopErr  error
}

func (s *execRecording) Read(p []byte) (int, error) { return s.stdout.Read(p) }

func (s *execRecording) Format() Format { return s.format }

// Close interrupts the subprocess and escalates to SIGKILL if it has not
// exited within the stop grace period.
func (s *execRecording) Close() error {
	s.stopOnce.Do(func() {
		_ = s.process.Signal(os.Interrupt)

		var err error
		select {
		case err = <-s.waitErr:
		case <-time.After(stopGrace):
			_ = s.process.Kill()
			err = <-s.waitErr
		}
		s.stopErr = ignoreExitError(err)

		if cerr := s.stdout.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = cerr
		}
		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.stopErr
}

// ignoreExitError drops the non-zero exit status a recorder reports when it
// is interrupted.
func ignoreExitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
