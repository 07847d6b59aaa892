package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/visionreader/internal/observe"
	"github.com/MrWong99/visionreader/internal/orchestrator"
	"github.com/MrWong99/visionreader/internal/playback"
	"github.com/MrWong99/visionreader/pkg/camera"
	cammock "github.com/MrWong99/visionreader/pkg/camera/mock"
	ldmock "github.com/MrWong99/visionreader/pkg/provider/langdetect/mock"
	"github.com/MrWong99/visionreader/pkg/provider/llm"
	llmmock "github.com/MrWong99/visionreader/pkg/provider/llm/mock"
	"github.com/MrWong99/visionreader/pkg/provider/tts"
	visionmock "github.com/MrWong99/visionreader/pkg/provider/vision/mock"
	"github.com/MrWong99/visionreader/pkg/types"
)

type utterance struct {
	text string
	lang string
}

// fakeSpeaker records utterances. fail, when set, decides the outcome per
// utterance; everything else completes.
type fakeSpeaker struct {
	mu   sync.Mutex
	said []utterance
	fail func(text string) (playback.Outcome, error)
}

func (s *fakeSpeaker) Play(_ context.Context, text, lang string) (playback.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, utterance{text, lang})
	if s.fail != nil {
		return s.fail(text)
	}
	return playback.Completed, nil
}

func (s *fakeSpeaker) utterances() []utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]utterance(nil), s.said...)
}

type fakeListener struct {
	text  string
	err   error
	calls int
}

func (l *fakeListener) Listen(context.Context) (string, error) {
	l.calls++
	return l.text, l.err
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func assertSaid(t *testing.T, got []utterance, want ...utterance) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("spoke %d utterances %+v, want %d %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("utterance %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

var msgs = DefaultMessages()

func vi(text string) utterance { return utterance{text, "vi"} }

type chatFixture struct {
	task     *ChatTask
	listener *fakeListener
	model    *llmmock.Provider
	detector *ldmock.Detector
	speaker  *fakeSpeaker
	state    *orchestrator.State
}

func newChatFixture(t *testing.T, opts ...Option) *chatFixture {
	t.Helper()
	f := &chatFixture{
		listener: &fakeListener{},
		model:    &llmmock.Provider{},
		detector: &ldmock.Detector{Lang: "en"},
		speaker:  &fakeSpeaker{},
		state:    orchestrator.NewState(),
	}
	opts = append([]Option{WithDetector(f.detector), WithMetrics(testMetrics(t))}, opts...)
	task, err := NewChat(f.listener, f.model, f.state, f.speaker, opts...)
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	f.task = task
	return f
}

func TestChat_AnswersQuestion(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.state.StoreOcrText("Hello world")
	f.listener.text = "what does this say"
	f.model.CompleteResponse = &llm.CompletionResponse{Content: "It says hello."}

	f.task.Run(context.Background())

	assertSaid(t, f.speaker.utterances(), vi(msgs.Greeting), utterance{"It says hello.", "en"})
	calls := f.model.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(calls))
	}
	want := []types.Message{{Role: "user", Content: "Nội dung OCR: Hello world\nNgười dùng hỏi: what does this say"}}
	got := calls[0].Req.Messages
	if len(got) != 1 || got[0].Role != want[0].Role || got[0].Content != want[0].Content {
		t.Errorf("prompt = %+v, want %+v", got, want)
	}
	if d := f.detector.Calls(); len(d) != 1 || d[0] != "It says hello." {
		t.Errorf("detected %q", d)
	}
}

func TestChat_FailurePaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setup     func(*chatFixture)
		want      utterance
		wantModel int
	}{
		{
			name:  "empty transcript",
			setup: func(f *chatFixture) { f.listener.text = "   " },
			want:  vi(msgs.NotUnderstood),
		},
		{
			name:  "listen error",
			setup: func(f *chatFixture) { f.listener.err = errors.New("arecord: no device") },
			want:  vi(msgs.GenericError),
		},
		{
			name: "model error",
			setup: func(f *chatFixture) {
				f.listener.text = "câu hỏi"
				f.model.CompleteErr = errors.New("429 quota")
			},
			want:      vi(msgs.GenericError),
			wantModel: 1,
		},
		{
			name: "empty answer",
			setup: func(f *chatFixture) {
				f.listener.text = "câu hỏi"
				f.model.CompleteResponse = &llm.CompletionResponse{Content: " \n"}
			},
			want:      vi(msgs.NoAnswer),
			wantModel: 1,
		},
		{
			name:      "nil response",
			setup:     func(f *chatFixture) { f.listener.text = "câu hỏi" },
			want:      vi(msgs.NoAnswer),
			wantModel: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newChatFixture(t)
			tt.setup(f)
			f.task.Run(context.Background())
			assertSaid(t, f.speaker.utterances(), vi(msgs.Greeting), tt.want)
			if got := len(f.model.Calls()); got != tt.wantModel {
				t.Errorf("Complete called %d times, want %d", got, tt.wantModel)
			}
		})
	}
}

func TestChat_DetectionFailureUsesDefault(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, WithDefaultLanguage("vi"))
	f.detector.DetectErr = errors.New("offline")
	f.listener.text = "hỏi"
	f.model.CompleteResponse = &llm.CompletionResponse{Content: "Trả lời."}

	f.task.Run(context.Background())

	assertSaid(t, f.speaker.utterances(), vi(msgs.Greeting), vi("Trả lời."))
}

func TestChat_GreetingCancelled(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t)
	f.speaker.fail = func(string) (playback.Outcome, error) { return playback.Cancelled, nil }

	f.task.Run(context.Background())

	if f.listener.calls != 0 {
		t.Error("listened after the greeting was cancelled")
	}
}

func TestChat_RepeatCommand(t *testing.T) {
	t.Parallel()

	t.Run("reads last scan", func(t *testing.T) {
		t.Parallel()
		f := newChatFixture(t, WithRepeatCommand(NewRepeatCommand(DefaultRepeatPhrases, 0)))
		f.detector.Lang = "vi"
		f.state.StoreOcrText("Chương một")
		f.listener.text = "Đọc lại."

		f.task.Run(context.Background())

		assertSaid(t, f.speaker.utterances(), vi(msgs.Greeting), vi("Chương một"))
		if len(f.model.Calls()) != 0 {
			t.Error("repeat command reached the model")
		}
	})

	t.Run("nothing scanned", func(t *testing.T) {
		t.Parallel()
		f := newChatFixture(t, WithRepeatCommand(NewRepeatCommand(DefaultRepeatPhrases, 0)))
		f.listener.text = "read again"

		f.task.Run(context.Background())

		assertSaid(t, f.speaker.utterances(), vi(msgs.Greeting), vi(msgs.NoText))
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		f := newChatFixture(t)
		f.listener.text = "đọc lại"
		f.model.CompleteResponse = &llm.CompletionResponse{Content: "ok"}

		f.task.Run(context.Background())

		if len(f.model.Calls()) != 1 {
			t.Error("without a repeat command every transcript goes to the model")
		}
	})
}

func TestSpeechApology(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fail    func(text string) (playback.Outcome, error)
		wantAll []utterance
	}{
		{
			name: "synthesis error apologises once",
			fail: func(text string) (playback.Outcome, error) {
				if text == "It says hello." {
					return playback.SynthesisFailed, errors.New("503")
				}
				return playback.Completed, nil
			},
			wantAll: []utterance{vi(msgs.Greeting), {"It says hello.", "en"}, vi(msgs.SpeechError)},
		},
		{
			name: "rejected text apologises once",
			fail: func(text string) (playback.Outcome, error) {
				if text == "It says hello." {
					return playback.SynthesisFailed, fmt.Errorf("google: %w", tts.ErrInvalidInput)
				}
				return playback.Completed, nil
			},
			wantAll: []utterance{vi(msgs.Greeting), {"It says hello.", "en"}, vi(msgs.SpeechError)},
		},
		{
			name: "apology failure does not recurse",
			fail: func(text string) (playback.Outcome, error) {
				if text == msgs.Greeting {
					return playback.Completed, nil
				}
				return playback.SynthesisFailed, errors.New("network down")
			},
			wantAll: []utterance{vi(msgs.Greeting), {"It says hello.", "en"}, vi(msgs.SpeechError)},
		},
		{
			name: "playback failure is not retried",
			fail: func(text string) (playback.Outcome, error) {
				if text == "It says hello." {
					return playback.PlaybackFailed, errors.New("aplay died")
				}
				return playback.Completed, nil
			},
			wantAll: []utterance{vi(msgs.Greeting), {"It says hello.", "en"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newChatFixture(t)
			f.speaker.fail = tt.fail
			f.listener.text = "what does this say"
			f.model.CompleteResponse = &llm.CompletionResponse{Content: "It says hello."}

			f.task.Run(context.Background())

			assertSaid(t, f.speaker.utterances(), tt.wantAll...)
		})
	}
}

func TestMessages_Override(t *testing.T) {
	t.Parallel()
	f := newChatFixture(t, WithMessages(Messages{Greeting: "Hello, ask me anything."}), WithDefaultLanguage("en"))
	f.listener.text = ""

	f.task.Run(context.Background())
	assertSaid(t, f.speaker.utterances(),
		utterance{"Hello, ask me anything.", "en"},
		utterance{msgs.NotUnderstood, "en"},
	)

	f.task.SetMessages(Messages{NotUnderstood: "Sorry?"})
	f.task.Run(context.Background())
	got := f.speaker.utterances()[2:]
	assertSaid(t, got, utterance{msgs.Greeting, "en"}, utterance{"Sorry?", "en"})
}

type ocrFixture struct {
	task    *OcrTask
	camera  *cammock.Camera
	reader  *visionmock.Provider
	speaker *fakeSpeaker
	state   *orchestrator.State
}

func newOcrFixture(t *testing.T) *ocrFixture {
	t.Helper()
	f := &ocrFixture{
		camera:  &cammock.Camera{Image: types.Image{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}},
		reader:  &visionmock.Provider{},
		speaker: &fakeSpeaker{},
		state:   orchestrator.NewState(),
	}
	task, err := NewOCR(f.camera, f.reader, f.state, f.speaker,
		WithDetector(&ldmock.Detector{Lang: "en"}), WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("NewOCR: %v", err)
	}
	f.task = task
	f.state.StoreOcrText("previous page")
	return f
}

func TestOCR_ReadsPage(t *testing.T) {
	t.Parallel()
	f := newOcrFixture(t)
	f.reader.Text = "  Chapter One\nIt was a dark night.  "

	f.task.Run(context.Background())

	want := "Chapter One\nIt was a dark night."
	assertSaid(t, f.speaker.utterances(), vi(msgs.Scanning), utterance{want, "en"})
	if got := f.state.SnapshotOcrText(); got != want {
		t.Errorf("lastOcrText = %q, want %q", got, want)
	}
	if calls := f.reader.ExtractCalls; len(calls) != 1 || len(calls[0].Data) != 3 {
		t.Errorf("vision calls = %+v", calls)
	}
}

func TestOCR_FailurePaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setup      func(*ocrFixture)
		want       []utterance
		wantVision int
	}{
		{
			name:  "camera not ready",
			setup: func(f *ocrFixture) { f.camera.CaptureErr = fmt.Errorf("%w: exit status 1", camera.ErrNotReady) },
			want:  []utterance{vi(msgs.CameraNotReady)},
		},
		{
			name:       "no text",
			setup:      func(f *ocrFixture) { f.reader.Text = "\n" },
			want:       []utterance{vi(msgs.Scanning), vi(msgs.NoText)},
			wantVision: 1,
		},
		{
			name:       "vision error",
			setup:      func(f *ocrFixture) { f.reader.ExtractErr = errors.New("deadline exceeded") },
			want:       []utterance{vi(msgs.Scanning), vi(msgs.GenericError)},
			wantVision: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newOcrFixture(t)
			tt.setup(f)

			f.task.Run(context.Background())

			assertSaid(t, f.speaker.utterances(), tt.want...)
			if got := f.reader.CallCount(); got != tt.wantVision {
				t.Errorf("vision calls = %d, want %d", got, tt.wantVision)
			}
			if got := f.state.SnapshotOcrText(); got != "previous page" {
				t.Errorf("lastOcrText = %q, want it unchanged", got)
			}
		})
	}
}

func TestOCR_LongPage(t *testing.T) {
	t.Parallel()
	f := newOcrFixture(t)
	page := strings.Repeat("Trang sách này có rất nhiều chữ tiếng Việt. ", 300)
	f.reader.Text = page
	f.speaker.fail = func(text string) (playback.Outcome, error) {
		if len(text) > 5000 {
			return playback.SynthesisFailed, fmt.Errorf("google: %w", tts.ErrInvalidInput)
		}
		return playback.Completed, nil
	}

	f.task.Run(context.Background())

	got := f.speaker.utterances()
	if len(got) < 3 || got[0] != vi(msgs.Scanning) {
		t.Fatalf("utterances = %d, want the scanning ack followed by several pieces", len(got))
	}
	var spoken []string
	for i, u := range got[1:] {
		if u.text == msgs.SpeechError {
			t.Fatal("page was rejected by the speech service")
		}
		if len(u.text) > MaxUtteranceBytes {
			t.Errorf("piece %d has %d bytes", i, len(u.text))
		}
		spoken = append(spoken, u.text)
	}
	want := strings.TrimSpace(page)
	if strings.Join(spoken, " ") != want {
		t.Error("spoken pieces do not add up to the page")
	}
	if f.state.SnapshotOcrText() != want {
		t.Error("stored text is not the whole page")
	}
}

func TestOCR_LongPageCancelled(t *testing.T) {
	t.Parallel()
	f := newOcrFixture(t)
	f.reader.Text = strings.Repeat("Một câu rất dài. ", 1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.speaker.fail = func(text string) (playback.Outcome, error) {
		if text != msgs.Scanning {
			cancel()
		}
		return playback.Completed, nil
	}

	f.task.Run(ctx)

	if got := f.speaker.utterances(); len(got) != 2 {
		t.Errorf("spoke %d utterances, want the ack and one piece", len(got))
	}
}

func TestNewChat_Validation(t *testing.T) {
	t.Parallel()
	s := orchestrator.NewState()
	if _, err := NewChat(nil, &llmmock.Provider{}, s, &fakeSpeaker{}); err == nil {
		t.Error("expected error for nil listener")
	}
	if _, err := NewChat(&fakeListener{}, nil, s, &fakeSpeaker{}); err == nil {
		t.Error("expected error for nil model")
	}
	if _, err := NewOCR(nil, &visionmock.Provider{}, s, &fakeSpeaker{}); err == nil {
		t.Error("expected error for nil camera")
	}
	if _, err := NewOCR(&cammock.Camera{}, &visionmock.Provider{}, s, nil); err == nil {
		t.Error("expected error for nil speaker")
	}
}
