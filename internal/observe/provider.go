package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitProvider installs a global MeterProvider whose reader is a Prometheus
// exporter registered with the default Prometheus registry, so that
// promhttp.Handler serves every instrument created from it.
//
// The returned function flushes and shuts the provider down.
func InitProvider() (*sdkmetric.MeterProvider, func(context.Context) error, error) {
	promExp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}
