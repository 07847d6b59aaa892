package audio_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/visionreader/pkg/audio"
)

func writeScript(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func waitDone(t *testing.T, pb audio.Playback) {
	t.Helper()
	select {
	case <-pb.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish")
	}
}

func TestExecPlayer_NaturalCompletion(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out.raw")
	script := writeScript(t, "play.sh", "#!/bin/sh\necho \"$1 $2\" > "+out+".args\ncat > "+out+"\n")
	p, err := audio.NewExecPlayer([]string{script, "{rate}", "{channels}"})
	if err != nil {
		t.Fatalf("NewExecPlayer: %v", err)
	}

	clip := audio.Clip{Data: make([]byte, 20000), Format: audio.Format{SampleRate: 22050, Channels: 1}}
	pb, err := p.Play(context.Background(), clip)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitDone(t, pb)
	if err := pb.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(got) != len(clip.Data) {
		t.Errorf("player received %d bytes, want %d", len(got), len(clip.Data))
	}
	args, _ := os.ReadFile(out + ".args")
	if strings.TrimSpace(string(args)) != "22050 1" {
		t.Errorf("args = %q, want %q", args, "22050 1")
	}
}

func TestExecPlayer_StopWhilePaused(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "slow.sh", "#!/bin/sh\nexec sleep 30\n")
	p, _ := audio.NewExecPlayer([]string{script})

	pb, err := p.Play(context.Background(), audio.Clip{
		Data:   make([]byte, 1<<20),
		Format: audio.Format{SampleRate: 16000, Channels: 1},
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := pb.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := pb.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := pb.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitDone(t, pb)
	if err := pb.Err(); err != nil {
		t.Errorf("Err after Stop = %v, want nil", err)
	}
	// Idempotent.
	if err := pb.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestExecPlayer_FailingCommand(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/bin/sh\necho 'no device' 1>&2\nexit 1\n")
	p, _ := audio.NewExecPlayer([]string{script})

	pb, err := p.Play(context.Background(), audio.Clip{
		Data:   make([]byte, 64),
		Format: audio.Format{SampleRate: 16000, Channels: 1},
	})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitDone(t, pb)
	if err := pb.Err(); err == nil || !strings.Contains(err.Error(), "no device") {
		t.Errorf("Err = %v, want exit error mentioning stderr", err)
	}
}

func TestExecPlayer_RejectsEmptyClip(t *testing.T) {
	t.Parallel()

	p, _ := audio.NewExecPlayer([]string{"true"})
	if _, err := p.Play(context.Background(), audio.Clip{}); err == nil {
		t.Fatal("expected error for empty clip")
	}
	if _, err := audio.NewExecPlayer(nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestExecRecorder_ReadAndClose(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "rec.sh", "#!/bin/sh\nprintf 'hello'\nexec sleep 5\n")
	r, err := audio.NewExecRecorder([]string{script})
	if err != nil {
		t.Fatalf("NewExecRecorder: %v", err)
	}

	rec, err := r.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(rec, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("read %q, want hello", buf)
	}
	if rec.Format() != audio.DefaultCaptureFormat {
		t.Errorf("format = %v", rec.Format())
	}
	if err := rec.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestExecRecorder_ReadAfterExit(t *testing.T) {
	t.Parallel()

	// Exits on its own once the startup grace is over; every byte it wrote
	// must still be readable.
	script := writeScript(t, "short.sh", "#!/bin/sh\nsleep 0.2\nhead -c 65536 /dev/zero\nprintf 'tail'\n")
	r, err := audio.NewExecRecorder([]string{script}, audio.WithStartupGrace(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewExecRecorder: %v", err)
	}

	rec, err := r.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	data, err := io.ReadAll(rec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 65536+4 {
		t.Errorf("read %d bytes, want %d", len(data), 65536+4)
	}
	if !strings.HasSuffix(string(data), "tail") {
		t.Errorf("stream does not end with the last write")
	}
	if err := rec.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestExecRecorder_EarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/bin/sh\necho 'boom' 1>&2\nexit 1\n")
	r, _ := audio.NewExecRecorder([]string{script}, audio.WithStartupGrace(time.Second))

	_, err := r.Record(context.Background())
	if err == nil {
		t.Fatal("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Errorf("unexpected error: %v", err)
	}
}
