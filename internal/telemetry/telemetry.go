// Package telemetry wires the OpenTelemetry metric SDK to a Prometheus
// registry and owns the meters used across the service.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// Telemetry bundles the meter backed by a process-local Prometheus
// registry. The registry is exposed over HTTP via Handler.
type Telemetry struct {
	Meter metric.Meter

	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
}

// NewTelemetry creates a Prometheus-backed meter provider.
func NewTelemetry(logger *zap.Logger) (*Telemetry, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("conference-mapper")

	logger.Info("telemetry initialized")
	return &Telemetry{
		Meter:    meter,
		registry: registry,
		provider: provider,
	}, nil
}

// Handler serves the Prometheus registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// StoreMetrics holds the instruments recorded by mapping store backends.
// A nil *StoreMetrics is valid and records nothing, so backends can run
// without telemetry in tests.
type StoreMetrics struct {
	lookups     metric.Int64Counter
	allocations metric.Int64Counter
	probes      metric.Int64Histogram
	sweptRows   metric.Int64Counter
}

// StoreMetrics creates the mapping store instruments on the telemetry meter.
func (t *Telemetry) StoreMetrics() (*StoreMetrics, error) {
	lookups, err := t.Meter.Int64Counter("mapper_lookups_total",
		metric.WithDescription("Mapping lookups by kind and outcome"))
	if err != nil {
		return nil, err
	}
	allocations, err := t.Meter.Int64Counter("mapper_allocations_total",
		metric.WithDescription("Room codes allocated"))
	if err != nil {
		return nil, err
	}
	probes, err := t.Meter.Int64Histogram("mapper_allocation_probes",
		metric.WithDescription("Collision probes per allocation"))
	if err != nil {
		return nil, err
	}
	sweptRows, err := t.Meter.Int64Counter("mapper_swept_rows_total",
		metric.WithDescription("Expired mappings removed by sweeps"))
	if err != nil {
		return nil, err
	}
	return &StoreMetrics{
		lookups:     lookups,
		allocations: allocations,
		probes:      probes,
		sweptRows:   sweptRows,
	}, nil
}

// RecordLookup counts one lookup of the given kind ("conference" or
// "code") and outcome ("hit", "miss", "error").
func (m *StoreMetrics) RecordLookup(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordAllocation counts one successful allocation and the number of
// probe offsets it took to find a free code.
func (m *StoreMetrics) RecordAllocation(ctx context.Context, probes int64) {
	if m == nil {
		return
	}
	m.allocations.Add(ctx, 1)
	m.probes.Record(ctx, probes)
}

// RecordSweep counts rows removed by an expiry sweep.
func (m *StoreMetrics) RecordSweep(ctx context.Context, removed int64) {
	if m == nil {
		return
	}
	m.sweptRows.Add(ctx, removed)
}
