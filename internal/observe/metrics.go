// Package observe holds the OpenTelemetry instruments used across remotescribe.
//
// Instruments are created from a [metric.MeterProvider]. The daemon installs a
// Prometheus-backed provider via [InitProvider]; everything else falls back to
// the global provider through [DefaultMetrics], which is a no-op until a real
// provider is registered. Tests should build their own with [NewMetrics] and an
// sdk ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/leonardotrapani/remotescribe"

// Metrics holds all instruments. Safe for concurrent use.
type Metrics struct {
	// FramesFed counts every frame handed to a recording session.
	FramesFed metric.Int64Counter

	// FramesWritten counts frames appended to the encoder track.
	FramesWritten metric.Int64Counter

	// FramesDropped counts frames discarded because the track was not ready.
	FramesDropped metric.Int64Counter

	// FramesRejected counts frames refused for an invalid or mismatched format.
	// Use with attribute.String("reason", ...).
	FramesRejected metric.Int64Counter

	// Recordings counts finished sessions by attribute.String("status", ...).
	Recordings metric.Int64Counter

	// ActiveRecordings is 1 while a session is writing.
	ActiveRecordings metric.Int64UpDownCounter

	// FinalizeDuration is the time spent flushing and closing a container.
	FinalizeDuration metric.Float64Histogram

	// CaptureDropped counts frames lost between the source and the pipeline.
	CaptureDropped metric.Int64Counter

	// TranscriptionDuration is the latency of one recognition request.
	TranscriptionDuration metric.Float64Histogram

	// TranscriptionErrors counts failed recognition requests by provider.
	TranscriptionErrors metric.Int64Counter
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates every instrument on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesFed, err = m.Int64Counter("remotescribe.recording.frames_fed",
		metric.WithDescription("Frames handed to a recording session."),
	); err != nil {
		return nil, err
	}
	if met.FramesWritten, err = m.Int64Counter("remotescribe.recording.frames_written",
		metric.WithDescription("Frames appended to the encoder track."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("remotescribe.recording.frames_dropped",
		metric.WithDescription("Frames dropped because the encoder track was not ready."),
	); err != nil {
		return nil, err
	}
	if met.FramesRejected, err = m.Int64Counter("remotescribe.recording.frames_rejected",
		metric.WithDescription("Frames refused for an invalid or mismatched format."),
	); err != nil {
		return nil, err
	}
	if met.Recordings, err = m.Int64Counter("remotescribe.recording.sessions",
		metric.WithDescription("Recording sessions that reached a terminal state, by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecordings, err = m.Int64UpDownCounter("remotescribe.recording.active",
		metric.WithDescription("Recording sessions currently writing."),
	); err != nil {
		return nil, err
	}
	if met.FinalizeDuration, err = m.Float64Histogram("remotescribe.recording.finalize.duration",
		metric.WithDescription("Time spent finalizing a recording container."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDropped, err = m.Int64Counter("remotescribe.capture.frames_dropped",
		metric.WithDescription("Frames lost between the audio source and the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("remotescribe.transcription.duration",
		metric.WithDescription("Latency of one speech recognition request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionErrors, err = m.Int64Counter("remotescribe.transcription.errors",
		metric.WithDescription("Failed speech recognition requests by provider."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level instance bound to the global provider.
// Panics if instrument creation fails, which the global provider never does.
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

// RecordRejected bumps FramesRejected with the given reason.
func (m *Metrics) RecordRejected(ctx context.Context, reason string) {
	m.FramesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSession bumps Recordings with the terminal status of a session.
func (m *Metrics) RecordSession(ctx context.Context, status string) {
	m.Recordings.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordTranscriptionError(ctx context.Context, provider string) {
	m.TranscriptionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}
