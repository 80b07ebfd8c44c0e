// Package observe holds the logbook's OpenTelemetry instruments and the
// Prometheus bridge that exposes them on /metrics.
//
// Tests should build their own [Metrics] with [NewMetrics] over a
// [sdkmetric.ManualReader] rather than the global provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/bina-refinery/logbook"

// Metrics holds all metric instruments of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// ReadingsRecorded counts persisted readings by location, parameter and status.
	ReadingsRecorded metric.Int64Counter

	// ReadingsRejected counts readings refused by range gating.
	ReadingsRejected metric.Int64Counter

	// ExtractionFailures counts transcripts that contained no number.
	ExtractionFailures metric.Int64Counter

	// VoiceCaptures counts capture attempts by outcome ("ok" or the error kind).
	VoiceCaptures metric.Int64Counter

	// VoiceCaptureDuration tracks wall time of one capture including transcription.
	VoiceCaptureDuration metric.Float64Histogram

	// StoreOperationDuration tracks log store operations by op and result.
	StoreOperationDuration metric.Float64Histogram

	// ActiveSessions tracks live operator sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.ReadingsRecorded, err = m.Int64Counter("logbook.readings.recorded",
		metric.WithDescription("Readings written to the log."),
	); err != nil {
		return nil, err
	}
	if met.ReadingsRejected, err = m.Int64Counter("logbook.readings.rejected",
		metric.WithDescription("Readings refused because they fell outside the parameter range."),
	); err != nil {
		return nil, err
	}
	if met.ExtractionFailures, err = m.Int64Counter("logbook.extraction.failures",
		metric.WithDescription("Transcripts with no numeric token."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCaptures, err = m.Int64Counter("logbook.voice.captures",
		metric.WithDescription("Voice capture attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.VoiceCaptureDuration, err = m.Float64Histogram("logbook.voice.capture.duration",
		metric.WithDescription("Voice capture latency including transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 3, 5, 8, 12, 20),
	); err != nil {
		return nil, err
	}
	if met.StoreOperationDuration, err = m.Float64Histogram("logbook.store.operation.duration",
		metric.WithDescription("Log store operation latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("logbook.sessions.active",
		metric.WithDescription("Number of live operator sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("logbook.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordReading counts one persisted reading.
func (m *Metrics) RecordReading(ctx context.Context, location, parameter, status string) {
	if m == nil {
		return
	}
	m.ReadingsRecorded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("location", location),
		attribute.String("parameter", parameter),
		attribute.String("status", status),
	))
}

// RecordRejection counts one reading refused by range gating.
func (m *Metrics) RecordRejection(ctx context.Context, location, parameter, status string) {
	if m == nil {
		return
	}
	m.ReadingsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("location", location),
		attribute.String("parameter", parameter),
		attribute.String("status", status),
	))
}

// RecordExtractionFailure counts one transcript without a number.
func (m *Metrics) RecordExtractionFailure(ctx context.Context, parameter string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("parameter", parameter)))
}

// RecordVoiceCapture records the outcome and latency of one capture.
func (m *Metrics) RecordVoiceCapture(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.VoiceCaptures.Add(ctx, 1, attrs)
	m.VoiceCaptureDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordStoreOp records the latency of one store operation.
func (m *Metrics) RecordStoreOp(ctx context.Context, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOperationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	))
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, 1)
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, -1)
}
