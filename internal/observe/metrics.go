// Package observe provides application-wide observability primitives for
// Hearth: OpenTelemetry metrics, tracing helpers, structured logging, and
// the /metrics listener that exposes them.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Hearth metrics.
const meterName = "github.com/oakmund/hearth"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per turn stage ---

	// CaptureDuration tracks utterance capture time, wake event to endpoint.
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// ChatDuration tracks the full orchestration loop latency, all rounds.
	ChatDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks end-to-end latency, wake event to playback done.
	TurnDuration metric.Float64Histogram

	// ToolExecutionDuration tracks capability execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// GateWait tracks time spent queued behind the speaker gate.
	GateWait metric.Float64Histogram

	// --- Counters ---

	// WakeDetections counts wake-word events. Use with attribute:
	//   attribute.String("keyword", ...)
	WakeDetections metric.Int64Counter

	// ToolCalls counts capability invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// FramesDropped counts audio frames evicted from the capture queue.
	FramesDropped metric.Int64Counter

	// Announcements counts timer announcements spoken.
	Announcements metric.Int64Counter

	// TurnsDiscarded counts turns abandoned before a response. Use with
	// attribute: attribute.String("reason", ...)
	TurnsDiscarded metric.Int64Counter

	// --- Gauges ---

	// ActiveTimers tracks the number of pending timers.
	ActiveTimers metric.Int64UpDownCounter

	// --- HTTP ---

	// HTTPRequestDuration tracks /metrics listener request time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CaptureDuration, err = m.Float64Histogram("hearth.capture.duration",
		metric.WithDescription("Utterance capture time from wake event to endpoint."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("hearth.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChatDuration, err = m.Float64Histogram("hearth.chat.duration",
		metric.WithDescription("Latency of the full chat orchestration loop."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("hearth.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("hearth.turn.duration",
		metric.WithDescription("End-to-end turn latency from wake event to playback completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("hearth.tool_execution.duration",
		metric.WithDescription("Latency of capability execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GateWait, err = m.Float64Histogram("hearth.gate.wait",
		metric.WithDescription("Time spent waiting for the speaker gate."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WakeDetections, err = m.Int64Counter("hearth.wake.detections",
		metric.WithDescription("Total wake-word detections by keyword."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("hearth.tool.calls",
		metric.WithDescription("Total capability invocations by name and status."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("hearth.audio.frames_dropped",
		metric.WithDescription("Total audio frames evicted from the capture queue."),
	); err != nil {
		return nil, err
	}
	if met.Announcements, err = m.Int64Counter("hearth.timer.announcements",
		metric.WithDescription("Total timer announcements spoken."),
	); err != nil {
		return nil, err
	}
	if met.TurnsDiscarded, err = m.Int64Counter("hearth.turns.discarded",
		metric.WithDescription("Total turns abandoned before a response, by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTimers, err = m.Int64UpDownCounter("hearth.timers.active",
		metric.WithDescription("Number of pending timers."),
	); err != nil {
		return nil, err
	}

	// HTTP listener histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("hearth.http.request.duration",
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

// RecordWake records one wake-word detection.
func (m *Metrics) RecordWake(ctx context.Context, keyword string) {
	m.WakeDetections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("keyword", keyword)),
	)
}

// RecordToolCall records one capability invocation with the standard
// attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordDiscard records one abandoned turn with its reason.
func (m *Metrics) RecordDiscard(ctx context.Context, reason string) {
	m.TurnsDiscarded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
