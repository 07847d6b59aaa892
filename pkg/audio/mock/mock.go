// Package mock provides in-memory implementations of [audio.Player],
// [audio.Playback], [audio.Recorder], and [audio.Recording] for unit tests.
//
// All mocks are safe for concurrent use. They record every call so tests can
// assert on device state after the code under test returns.
//
// Typical usage:
//
//	player := &mock.Player{}
//	pb, _ := player.Play(ctx, clip)
//	player.Last().Finish(nil) // simulate natural completion
//	if player.Active() { t.Fatal("device left busy") }
package mock

import (
	"bytes"
	"context"
	"sync"

	"github.com/MrWong99/visionreader/pkg/audio"
)

// ─── Player ───────────────────────────────────────────────────────────────────

// Player is a mock [audio.Player]. Each Play call creates a [Playback] that
// stays in [StatePlaying] until the test calls Finish or the code under test
// calls Stop, unless AutoFinish is set.
type Player struct {
	mu sync.Mutex

	// PlayErr is returned by Play when non-nil.
	PlayErr error

	// AutoFinish makes every new playback complete immediately with
	// FinishErr.
	AutoFinish bool

	// FinishErr is the Err reported by auto-finished playbacks.
	FinishErr error

	// OnPlay, if set, is called with every new playback after it is created.
	OnPlay func(*Playback)

	// PlayCalls records every clip passed to Play.
	PlayCalls []audio.Clip

	playbacks []*Playback
}

var _ audio.Player = (*Player)(nil)

// Play implements [audio.Player].
func (p *Player) Play(_ context.Context, c audio.Clip) (audio.Playback, error) {
	p.mu.Lock()
	p.PlayCalls = append(p.PlayCalls, c)
	if p.PlayErr != nil {
		err := p.PlayErr
		p.mu.Unlock()
		return nil, err
	}
	pb := NewPlayback()
	p.playbacks = append(p.playbacks, pb)
	auto, finishErr, onPlay := p.AutoFinish, p.FinishErr, p.OnPlay
	p.mu.Unlock()

	if onPlay != nil {
		onPlay(pb)
	}
	if auto {
		pb.Finish(finishErr)
	}
	return pb, nil
}

// Playbacks returns every playback created so far, oldest first.
func (p *Player) Playbacks() []*Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Playback(nil), p.playbacks...)
}

// Last returns the most recent playback, or nil.
func (p *Player) Last() *Playback {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.playbacks) == 0 {
		return nil
	}
	return p.playbacks[len(p.playbacks)-1]
}

// Active reports whether any playback is still playing or paused.
func (p *Player) Active() bool {
	for _, pb := range p.Playbacks() {
		if s := pb.State(); s == StatePlaying || s == StatePaused {
			return true
		}
	}
	return false
}

// Reset clears recorded calls and playbacks.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = nil
	p.playbacks = nil
}

// ─── Playback ─────────────────────────────────────────────────────────────────

// State is the simulated device state of a [Playback].
type State int

const (
	StatePlaying State = iota
	StatePaused
	StateStopped
	StateFinished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// Playback is a mock [audio.Playback].
type Playback struct {
	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}

	// PauseErr and ResumeErr are returned by Pause and Resume when non-nil.
	PauseErr  error
	ResumeErr error

	// PauseCalls, ResumeCalls, and StopCalls count method invocations.
	PauseCalls  int
	ResumeCalls int
	StopCalls   int
}

var _ audio.Playback = (*Playback)(nil)

// NewPlayback returns a playback in [StatePlaying].
func NewPlayback() *Playback {
	return &Playback{done: make(chan struct{})}
}

// Finish simulates the device ending playback on its own. A nil err is a
// natural completion. Finish is a no-op once playback has ended.
func (pb *Playback) Finish(err error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.endedLocked() {
		return
	}
	pb.state = StateFinished
	pb.err = err
	close(pb.done)
}

// State returns the current simulated device state.
func (pb *Playback) State() State {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.state
}

// Counts returns the pause, resume, and stop call counts.
func (pb *Playback) Counts() (pauses, resumes, stops int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.PauseCalls, pb.ResumeCalls, pb.StopCalls
}

// Pause implements [audio.Playback].
func (pb *Playback) Pause() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.PauseCalls++
	if pb.PauseErr != nil {
		return pb.PauseErr
	}
	if pb.state == StatePlaying {
		pb.state = StatePaused
	}
	return nil
}

// Resume implements [audio.Playback].
func (pb *Playback) Resume() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.ResumeCalls++
	if pb.ResumeErr != nil {
		return pb.ResumeErr
	}
	if pb.state == StatePaused {
		pb.state = StatePlaying
	}
	return nil
}

// Stop implements [audio.Playback].
func (pb *Playback) Stop() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.StopCalls++
	if !pb.endedLocked() {
		pb.state = StateStopped
		close(pb.done)
	}
	return nil
}

// Done implements [audio.Playback].
func (pb *Playback) Done() <-chan struct{} { return pb.done }

// Err implements [audio.Playback].
func (pb *Playback) Err() error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.err
}

func (pb *Playback) endedLocked() bool {
	return pb.state == StateStopped || pb.state == StateFinished
}

// ─── Recorder ─────────────────────────────────────────────────────────────────

// Recorder is a mock [audio.Recorder] that replays PCM from memory.
type Recorder struct {
	mu sync.Mutex

	// PCM is served by every recording. Reads return io.EOF once exhausted.
	PCM []byte

	// Format is reported by every recording. Defaults to
	// [audio.DefaultCaptureFormat].
	Format audio.Format

	// RecordErr is returned by Record when non-nil.
	RecordErr error

	// RecordCalls counts Record invocations.
	RecordCalls int

	recordings []*Recording
}

var _ audio.Recorder = (*Recorder)(nil)

// Record implements [audio.Recorder].
func (r *Recorder) Record(_ context.Context) (audio.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RecordCalls++
	if r.RecordErr != nil {
		return nil, r.RecordErr
	}
	f := r.Format
	if f.SampleRate == 0 {
		f = audio.DefaultCaptureFormat
	}
	rec := &Recording{r: bytes.NewReader(r.PCM), format: f}
	r.recordings = append(r.recordings, rec)
	return rec, nil
}

// Recordings returns every recording handed out so far.
func (r *Recorder) Recordings() []*Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Recording(nil), r.recordings...)
}

// Recording is a mock [audio.Recording].
type Recording struct {
	mu     sync.Mutex
	r      *bytes.Reader
	format audio.Format
	closed bool
}

// Read implements io.Reader.
func (rec *Recording) Read(p []byte) (int, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.r.Read(p)
}

// Format implements [audio.Recording].
func (rec *Recording) Format() audio.Format { return rec.format }

// Close implements [audio.Recording].
func (rec *Recording) Close() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (rec *Recording) Closed() bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.closed
}
