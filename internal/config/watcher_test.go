package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/visionreader/internal/config"
)

// writeConfig writes content and moves the mtime forward so every write is
// visible to the watcher regardless of filesystem timestamp resolution.
func writeConfig(t *testing.T, path, content string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	mtime := time.Now().Add(age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

type changes struct {
	mu    sync.Mutex
	pairs [][2]*config.Config
	ch    chan struct{}
}

func newChanges() *changes { return &changes{ch: make(chan struct{}, 8)} }

func (c *changes) record(old, new *config.Config) {
	c.mu.Lock()
	c.pairs = append(c.pairs, [2]*config.Config{old, new})
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *changes) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pairs)
}

func startWatcher(t *testing.T, path string, c *changes) *config.Watcher {
	t.Helper()
	w, err := config.NewWatcher(path, c.record, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return w
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, minimalYAML, -time.Hour)

	c := newChanges()
	w := startWatcher(t, path, c)
	if w.Current().Playback.Speed != 1.2 {
		t.Fatalf("initial speed = %v", w.Current().Playback.Speed)
	}

	writeConfig(t, path, minimalYAML+"playback: {speed: 1.6}\n", 0)
	select {
	case <-c.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("change was not reported")
	}

	c.mu.Lock()
	old, updated := c.pairs[0][0], c.pairs[0][1]
	c.mu.Unlock()
	if old.Playback.Speed != 1.2 || updated.Playback.Speed != 1.6 {
		t.Errorf("speeds = %v -> %v", old.Playback.Speed, updated.Playback.Speed)
	}
	if w.Current().Playback.Speed != 1.6 {
		t.Errorf("Current() speed = %v, want 1.6", w.Current().Playback.Speed)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, minimalYAML, -time.Hour)

	c := newChanges()
	w := startWatcher(t, path, c)

	writeConfig(t, path, strings.Replace(minimalYAML, "stt: {name: google", "stt: {name: \"\"", 1), 0)
	time.Sleep(150 * time.Millisecond)

	if c.count() != 0 {
		t.Error("invalid config was reported as a change")
	}
	if w.Current().Providers.STT.Name != "google" {
		t.Error("invalid config replaced the current one")
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, minimalYAML, -time.Hour)

	c := newChanges()
	startWatcher(t, path, c)

	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if c.count() != 0 {
		t.Errorf("touch-only produced %d changes", c.count())
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
