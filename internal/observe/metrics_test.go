package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumPoint returns the value of the int64 sum data point carrying key=value.
func sumPoint(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"visionreader.task.duration", m.TaskDuration},
		{"visionreader.provider.duration", m.ProviderDuration},
		{"visionreader.http.request.duration", m.HTTPRequestDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 4.56)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTaskStarted(ctx, "chat")
	m.RecordTaskFinished(ctx, "chat", 3*time.Second)
	m.RecordTaskStarted(ctx, "ocr")
	m.RecordTaskDropped(ctx, "chat")
	m.RecordTaskDropped(ctx, "chat")

	rm := collect(t, reader)

	if got := sumPoint(t, rm, "visionreader.task.started", "kind", "chat"); got != 1 {
		t.Errorf("started{chat} = %d, want 1", got)
	}
	if got := sumPoint(t, rm, "visionreader.task.dropped", "kind", "chat"); got != 2 {
		t.Errorf("dropped{chat} = %d, want 2", got)
	}
	if got := sumPoint(t, rm, "visionreader.task.active", "kind", "chat"); got != 0 {
		t.Errorf("active{chat} = %d, want 0", got)
	}
	if got := sumPoint(t, rm, "visionreader.task.active", "kind", "ocr"); got != 1 {
		t.Errorf("active{ocr} = %d, want 1", got)
	}
}

func TestPauseAndPlaybackCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPauseToggle(ctx, true)
	m.RecordPauseToggle(ctx, false)
	m.RecordPauseToggle(ctx, true)
	m.RecordPlaybackOutcome(ctx, "completed")
	m.RecordPlaybackOutcome(ctx, "cancelled")
	m.RecordPlaybackOutcome(ctx, "completed")

	rm := collect(t, reader)

	if got := sumPoint(t, rm, "visionreader.pause.toggled", "state", "paused"); got != 2 {
		t.Errorf("pause{paused} = %d, want 2", got)
	}
	if got := sumPoint(t, rm, "visionreader.playback.outcome", "outcome", "completed"); got != 2 {
		t.Errorf("outcome{completed} = %d, want 2", got)
	}
	if got := sumPoint(t, rm, "visionreader.playback.outcome", "outcome", "cancelled"); got != 1 {
		t.Errorf("outcome{cancelled} = %d, want 1", got)
	}
}

func TestRecordProviderCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderCall(ctx, "google", "tts", 200*time.Millisecond, nil)
	m.RecordProviderCall(ctx, "google", "tts", time.Second, errors.New("boom"))

	rm := collect(t, reader)

	if got := sumPoint(t, rm, "visionreader.provider.errors", "provider", "google"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
	met := findMetric(rm, "visionreader.provider.duration")
	if met == nil {
		t.Fatal("provider duration not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if got := hist.DataPoints[0].Count; got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
