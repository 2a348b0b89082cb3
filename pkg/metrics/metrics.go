package metrics

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"bahamut/pkg/otel"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	// meterProvider is the global meter provider
	meterProvider *sdkmetric.MeterProvider

	// Meter is the global meter for creating instruments
	Meter metric.Meter

	// lastSuccessTimestamp tracks the last published export (Unix timestamp)
	lastSuccessTimestamp atomic.Int64

	// lastExportDocuments tracks the document count of the last published export
	lastExportDocuments atomic.Int64
)

// InitMetrics initializes OpenTelemetry metrics with the configured exporter.
// Returns a shutdown function that should be called on application exit.
func InitMetrics() (func(), error) {
	if !otel.IsMetricsEnabled() {
		slog.Debug("OpenTelemetry metrics is disabled")
		return func() {}, nil
	}

	ctx := context.Background()
	cfg := otel.GetExporterConfig(otel.SignalMetrics)

	exporter, err := otel.NewMetricExporter(ctx, cfg)
	if err != nil {
		slog.Warn("Failed to create OTLP metric exporter, using noop", "error", err)
		return func() {}, nil
	}

	res, err := otel.NewResource()
	if err != nil {
		slog.Warn("Failed to create resource, using noop", "error", err)
		return func() {}, nil
	}

	// An export run takes minutes, so a 60s reader interval is fine
	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(60*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otelapi.SetMeterProvider(meterProvider)

	Meter = meterProvider.Meter(otel.ServiceName)

	if err := initializeInstruments(); err != nil {
		slog.Error("Failed to initialize metric instruments", "error", err)
		Meter = nil
		return func() {}, nil
	}

	if err := registerObservables(); err != nil {
		slog.Warn("Failed to register observable gauges", "error", err)
	}

	slog.Debug("OpenTelemetry metrics initialized",
		"endpoint", cfg.Endpoint,
		"protocol", cfg.Protocol,
	)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down meter provider", "error", err)
		}
	}, nil
}

type memGauge struct {
	name        string
	description string
	read        func(m *runtime.MemStats) uint64
}

var memGauges = []memGauge{
	{"runtime.go.mem.heap_alloc", "Heap memory allocated", func(m *runtime.MemStats) uint64 { return m.HeapAlloc }},
	{"runtime.go.mem.heap_inuse", "Heap memory in use", func(m *runtime.MemStats) uint64 { return m.HeapInuse }},
	{"runtime.go.mem.heap_sys", "Heap memory obtained from OS", func(m *runtime.MemStats) uint64 { return m.HeapSys }},
	{"runtime.go.mem.sys", "Total memory obtained from OS", func(m *runtime.MemStats) uint64 { return m.Sys }},
}

// registerObservables registers runtime gauges and the export state gauges
func registerObservables() error {
	_, err := Meter.Int64ObservableGauge(
		"runtime.go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutine}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	for _, g := range memGauges {
		read := g.read
		_, err := Meter.Int64ObservableGauge(
			g.name,
			metric.WithDescription(g.description),
			metric.WithUnit("By"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				o.Observe(int64(read(&m)))
				return nil
			}),
		)
		if err != nil {
			return err
		}
	}

	_, err = Meter.Int64ObservableGauge(
		"export.last_success.timestamp",
		metric.WithDescription("Unix timestamp of the last published export"),
		metric.WithUnit("s"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if ts := lastSuccessTimestamp.Load(); ts > 0 {
				o.Observe(ts)
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = Meter.Int64ObservableGauge(
		"export.last_success.documents",
		metric.WithDescription("Documents in the last published export"),
		metric.WithUnit("{document}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if n := lastExportDocuments.Load(); n > 0 {
				o.Observe(n)
			}
			return nil
		}),
	)
	return err
}

// RecordLastSuccess records the current time and document count of a published export
func RecordLastSuccess(documents int) {
	lastSuccessTimestamp.Store(time.Now().Unix())
	lastExportDocuments.Store(int64(documents))
}

// LastSuccess returns the Unix timestamp and document count of the last
// published export, zero before the first one.
func LastSuccess() (timestamp int64, documents int64) {
	return lastSuccessTimestamp.Load(), lastExportDocuments.Load()
}

// IsEnabled returns true if metrics collection is enabled
func IsEnabled() bool {
	return Meter != nil
}
