package orchestrator

import "sync"

// State is the interaction state shared between the polling goroutine, the
// active worker, and the playback session. Every field is reached through a
// method that takes the lock; no caller ever holds it across a blocking call.
//
// Pause and cancel changes are broadcast on [State.Changed] so a waiting
// playback loop reacts without waiting for its next poll.
type State struct {
	mu              sync.Mutex
	taskRunning     bool
	paused          bool
	cancelRequested bool
	lastOcrText     string
	changed         chan struct{}
}

// NewState returns an idle, unpaused state.
func NewState() *State {
	return &State{changed: make(chan struct{})}
}

// TryAcquireTask marks a task as running and raises the cancel signal. It
// returns false, changing nothing, when a task is already running.
func (s *State) TryAcquireTask() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskRunning {
		return false
	}
	s.taskRunning = true
	s.cancelRequested = true
	s.notifyLocked()
	return true
}

// ReleaseTask marks the running task as finished.
func (s *State) ReleaseTask() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskRunning = false
}

// TaskRunning reports whether a task holds the device.
func (s *State) TaskRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskRunning
}

// SetPaused sets the pause flag.
func (s *State) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused != paused {
		s.paused = paused
		s.notifyLocked()
	}
}

// TogglePause flips the pause flag and returns the new value.
func (s *State) TogglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	s.notifyLocked()
	return s.paused
}

// IsPaused reports the pause flag.
func (s *State) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// RequestCancel raises the cancel signal.
func (s *State) RequestCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = true
	s.notifyLocked()
}

// CancelRequested reports the cancel signal without clearing it.
func (s *State) CancelRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested
}

// ConsumeCancel clears the cancel signal and reports whether it was raised.
func (s *State) ConsumeCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.cancelRequested
	s.cancelRequested = false
	return was
}

// ClearCancel lowers the cancel signal.
func (s *State) ClearCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = false
}

// SnapshotOcrText returns the text of the last successful scan, or "".
func (s *State) SnapshotOcrText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOcrText
}

// StoreOcrText replaces the text of the last successful scan.
func (s *State) StoreOcrText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOcrText = text
}

// Changed returns a channel that is closed the next time the pause or cancel
// flag changes. Grab the channel before reading the flags so no change is
// missed.
func (s *State) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

func (s *State) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
