package orchestrator

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestState_TryAcquireTask_Exclusive(t *testing.T) {
	t.Parallel()

	s := NewState()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryAcquireTask() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("TryAcquireTask succeeded %d times, want 1", got)
	}
	if !s.CancelRequested() {
		t.Error("acquiring a task must raise the cancel signal")
	}
	s.ReleaseTask()
	if s.TaskRunning() {
		t.Error("TaskRunning after ReleaseTask")
	}
	if !s.TryAcquireTask() {
		t.Error("TryAcquireTask failed after release")
	}
}

func TestState_Flags(t *testing.T) {
	t.Parallel()

	s := NewState()
	if s.IsPaused() || s.CancelRequested() || s.TaskRunning() {
		t.Fatal("new state is not idle")
	}

	if !s.TogglePause() || !s.IsPaused() {
		t.Error("first toggle should pause")
	}
	if s.TogglePause() || s.IsPaused() {
		t.Error("second toggle should resume")
	}
	s.SetPaused(true)
	if !s.IsPaused() {
		t.Error("SetPaused(true) ignored")
	}

	s.RequestCancel()
	if !s.ConsumeCancel() {
		t.Error("ConsumeCancel did not report the raised signal")
	}
	if s.ConsumeCancel() {
		t.Error("ConsumeCancel did not clear the signal")
	}
	s.RequestCancel()
	s.ClearCancel()
	if s.CancelRequested() {
		t.Error("ClearCancel left the signal raised")
	}

	if got := s.SnapshotOcrText(); got != "" {
		t.Errorf("initial OCR text = %q", got)
	}
	s.StoreOcrText("trang một")
	if got := s.SnapshotOcrText(); got != "trang một" {
		t.Errorf("SnapshotOcrText = %q", got)
	}
}

func TestState_ChangedWakesWaiters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		change func(*State)
	}{
		{name: "toggle pause", change: func(s *State) { s.TogglePause() }},
		{name: "set paused", change: func(s *State) { s.SetPaused(true) }},
		{name: "request cancel", change: func(s *State) { s.RequestCancel() }},
		{name: "acquire task", change: func(s *State) { s.TryAcquireTask() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewState()
			wake := s.Changed()
			tt.change(s)
			select {
			case <-wake:
			case <-time.After(time.Second):
				t.Fatal("Changed channel was not closed")
			}
			select {
			case <-s.Changed():
				t.Fatal("fresh Changed channel is already closed")
			default:
			}
		})
	}
}

func TestState_SetPausedSameValueDoesNotWake(t *testing.T) {
	t.Parallel()

	s := NewState()
	wake := s.Changed()
	s.SetPaused(false)
	select {
	case <-wake:
		t.Fatal("unchanged pause flag woke waiters")
	default:
	}
}
