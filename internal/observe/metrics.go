// Package observe provides application-wide observability primitives for
// visionreader: OpenTelemetry metrics, tracing helpers, and HTTP middleware
// for the diagnostics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via /metrics. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/visionreader"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// TaskDuration tracks how long a chat or OCR task held the device. Use
	// with attribute.String("kind", ...).
	TaskDuration metric.Float64Histogram

	// ProviderDuration tracks external service latency. Use with
	// attribute.String("kind", ...) (stt, tts, llm, vision, langdetect).
	ProviderDuration metric.Float64Histogram

	// --- Counters ---

	// TasksStarted counts tasks launched by a button press.
	TasksStarted metric.Int64Counter

	// TasksDropped counts presses ignored because a task was already running.
	TasksDropped metric.Int64Counter

	// PauseToggles counts pause button presses.
	PauseToggles metric.Int64Counter

	// PlaybackOutcomes counts finished playback sessions. Use with
	// attribute.String("outcome", ...).
	PlaybackOutcomes metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveTasks is 1 while a task runs and 0 otherwise.
	ActiveTasks metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Cloud
// round trips and whole spoken answers sit at the upper end.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TaskDuration, err = m.Float64Histogram("visionreader.task.duration",
		metric.WithDescription("Wall time of a chat or OCR task."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("visionreader.provider.duration",
		metric.WithDescription("Latency of external service calls by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TasksStarted, err = m.Int64Counter("visionreader.task.started",
		metric.WithDescription("Tasks launched by kind."),
	); err != nil {
		return nil, err
	}
	if met.TasksDropped, err = m.Int64Counter("visionreader.task.dropped",
		metric.WithDescription("Presses ignored while another task was running, by kind."),
	); err != nil {
		return nil, err
	}
	if met.PauseToggles, err = m.Int64Counter("visionreader.pause.toggled",
		metric.WithDescription("Pause button presses."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackOutcomes, err = m.Int64Counter("visionreader.playback.outcome",
		metric.WithDescription("Finished playback sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("visionreader.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTasks, err = m.Int64UpDownCounter("visionreader.task.active",
		metric.WithDescription("Number of tasks currently running (0 or 1)."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("visionreader.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTaskStarted records a launched task and bumps the active gauge.
func (m *Metrics) RecordTaskStarted(ctx context.Context, kind string) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.TasksStarted.Add(ctx, 1, attrs)
	m.ActiveTasks.Add(ctx, 1, attrs)
}

// RecordTaskFinished records the duration of a task and lowers the active
// gauge. Pair every call with one [Metrics.RecordTaskStarted].
func (m *Metrics) RecordTaskFinished(ctx context.Context, kind string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.TaskDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.ActiveTasks.Add(ctx, -1, attrs)
}

// RecordTaskDropped records a press ignored because a task was running.
func (m *Metrics) RecordTaskDropped(ctx context.Context, kind string) {
	m.TasksDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordPauseToggle records one pause button press.
func (m *Metrics) RecordPauseToggle(ctx context.Context, paused bool) {
	state := "resumed"
	if paused {
		state = "paused"
	}
	m.PauseToggles.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordPlaybackOutcome records how a playback session ended.
func (m *Metrics) RecordPlaybackOutcome(ctx context.Context, outcome string) {
	m.PlaybackOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordProviderCall records the latency of one external service call and,
// when err is non-nil, a provider error.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, kind string, elapsed time.Duration, err error) {
	m.ProviderDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
	if err != nil {
		m.RecordProviderError(ctx, provider, kind)
	}
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
