package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultPlayerCommand plays raw PCM from stdin through ALSA.
var DefaultPlayerCommand = []string{
	"aplay", "-q", "-t", "raw", "-f", "S16_LE", "-r", "{rate}", "-c", "{channels}", "-",
}

// writeChunk bounds each stdin write so Stop is never stuck behind one large
// buffered write.
const writeChunk = 4096

// PlayerOption configures an [ExecPlayer].
type PlayerOption func(*ExecPlayer)

// WithDeviceFormat makes the player convert every clip to f before playback.
// By default clips are played in their native format.
func WithDeviceFormat(f Format) PlayerOption {
	return func(p *ExecPlayer) { p.format = f }
}

// ExecPlayer plays clips by piping PCM into a subprocess such as aplay. Pause
// and resume suspend the subprocess with SIGSTOP/SIGCONT so the device stops
// consuming samples immediately.
type ExecPlayer struct {
	command []string
	format  Format
}

var _ Player = (*ExecPlayer)(nil)

// NewExecPlayer returns a player running command. Arguments may contain the
// placeholders {rate} and {channels}.
func NewExecPlayer(command []string, opts ...PlayerOption) (*ExecPlayer, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("audio: player command must not be empty")
	}
	p := &ExecPlayer{command: command}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Binary returns the executable name the player runs.
func (p *ExecPlayer) Binary() string { return p.command[0] }

// Play implements [Player].
func (p *ExecPlayer) Play(ctx context.Context, c Clip) (Playback, error) {
	if c.Empty() {
		return nil, errors.New("audio: clip is empty")
	}
	if p.format.SampleRate > 0 {
		c = Normalize(c, p.format)
	}

	cmd := exec.Command(p.command[0], expandArgs(p.command[1:], c.Format)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: player stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start %s: %w", p.command[0], err)
	}

	pb := &execPlayback{
		cmd:    cmd,
		stderr: &stderr,
		done:   make(chan struct{}),
	}
	go pb.feed(stdin, c.Data)
	go pb.wait()
	go func() {
		select {
		case <-ctx.Done():
			_ = pb.Stop()
		case <-pb.done:
		}
	}()
	return pb, nil
}

type execPlayback struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer

	mu      sync.Mutex
	paused  bool
	stopped bool
	err     error

	stopOnce sync.Once
	done     chan struct{}
}

func (pb *execPlayback) feed(w io.WriteCloser, pcm []byte) {
	defer w.Close()
	for len(pcm) > 0 {
		n := min(writeChunk, len(pcm))
		if _, err := w.Write(pcm[:n]); err != nil {
			// The process is gone; wait() reports why.
			return
		}
		pcm = pcm[n:]
	}
}

func (pb *execPlayback) wait() {
	err := pb.cmd.Wait()
	pb.mu.Lock()
	if !pb.stopped && err != nil {
		pb.err = fmt.Errorf("audio: %s exited: %w: %s",
			pb.cmd.Path, err, strings.TrimSpace(pb.stderr.String()))
	}
	pb.mu.Unlock()
	close(pb.done)
}

func (pb *execPlayback) signal(sig unix.Signal) error {
	if err := unix.Kill(pb.cmd.Process.Pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("audio: signal %s: %w", unix.SignalName(sig), err)
	}
	return nil
}

// Pause implements [Playback].
func (pb *execPlayback) Pause() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.paused || pb.stopped || pb.finished() {
		return nil
	}
	if err := pb.signal(unix.SIGSTOP); err != nil {
		return err
	}
	pb.paused = true
	return nil
}

// Resume implements [Playback].
func (pb *execPlayback) Resume() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if !pb.paused || pb.stopped {
		return nil
	}
	if err := pb.signal(unix.SIGCONT); err != nil {
		return err
	}
	pb.paused = false
	return nil
}

// Stop implements [Playback].
func (pb *execPlayback) Stop() error {
	pb.stopOnce.Do(func() {
		pb.mu.Lock()
		pb.stopped = true
		if pb.paused {
			_ = pb.signal(unix.SIGCONT)
			pb.paused = false
		}
		pb.mu.Unlock()
		if !pb.finished() {
			if err := pb.cmd.Process.Kill(); err != nil {
				slog.Debug("audio: kill player", "err", err)
			}
		}
	})
	<-pb.done
	return nil
}

func (pb *execPlayback) finished() bool {
	select {
	case <-pb.done:
		return true
	default:
		return false
	}
}

// Done implements [Playback].
func (pb *execPlayback) Done() <-chan struct{} { return pb.done }

// Err implements [Playback].
func (pb *execPlayback) Err() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.err
}
