package observe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

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

func sumFor(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordReading(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordReading(ctx, "Area 1", "Pressure", "Normal")
	m.RecordReading(ctx, "Area 1", "Pressure", "Normal")
	m.RecordRejection(ctx, "Area 1", "Pressure", "Above Range")
	m.RecordExtractionFailure(ctx, "Pressure")

	rm := collect(t, reader)

	recorded := findMetric(rm, "logbook.readings.recorded")
	require.NotNil(t, recorded)
	assert.Equal(t, int64(2), sumFor(t, recorded, "status", "Normal"))

	rejected := findMetric(rm, "logbook.readings.rejected")
	require.NotNil(t, rejected)
	assert.Equal(t, int64(1), sumFor(t, rejected, "status", "Above Range"))

	failures := findMetric(rm, "logbook.extraction.failures")
	require.NotNil(t, failures)
	assert.Equal(t, int64(1), sumFor(t, failures, "parameter", "Pressure"))
}

func TestRecordVoiceCapture(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordVoiceCapture(ctx, "ok", 1500*time.Millisecond)
	m.RecordVoiceCapture(ctx, "no_speech", 5*time.Second)

	rm := collect(t, reader)
	captures := findMetric(rm, "logbook.voice.captures")
	require.NotNil(t, captures)
	assert.Equal(t, int64(1), sumFor(t, captures, "outcome", "ok"))
	assert.Equal(t, int64(1), sumFor(t, captures, "outcome", "no_speech"))

	dur := findMetric(rm, "logbook.voice.capture.duration")
	require.NotNil(t, dur)
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestRecordStoreOp(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordStoreOp(context.Background(), "append", 3*time.Millisecond, nil)
	m.RecordStoreOp(context.Background(), "append", 3*time.Millisecond, errors.New("disk full"))

	rm := collect(t, reader)
	dur := findMetric(rm, "logbook.store.operation.duration")
	require.NotNil(t, dur)
	hist := dur.Data.(metricdata.Histogram[float64])
	assert.Len(t, hist.DataPoints, 2)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordReading(ctx, "a", "b", "Normal")
		m.RecordRejection(ctx, "a", "b", "Below Range")
		m.RecordExtractionFailure(ctx, "b")
		m.RecordVoiceCapture(ctx, "ok", time.Second)
		m.RecordStoreOp(ctx, "append", time.Millisecond, nil)
		m.SessionOpened(ctx)
		m.SessionClosed(ctx)
	})
}

func TestMiddlewareRecordsRoute(t *testing.T) {
	m, reader := newTestMetrics(t)

	e := echo.New()
	e.Use(Middleware(m))
	e.GET("/api/sessions/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rm := collect(t, reader)
	dur := findMetric(rm, "logbook.http.request.duration")
	require.NotNil(t, dur)
	hist := dur.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	route, ok := hist.DataPoints[0].Attributes.Value("route")
	require.True(t, ok)
	assert.Equal(t, "/api/sessions/:id", route.AsString())
	status, _ := hist.DataPoints[0].Attributes.Value("status")
	assert.Equal(t, "200", status.AsString())
}
