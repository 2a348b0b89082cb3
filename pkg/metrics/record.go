package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// The Record helpers are no-ops until InitMetrics has created the instruments.

// RecordParse records the duration and payload size of one NeTEx parse.
func RecordParse(ctx context.Context, d time.Duration, size int) {
	if !IsEnabled() {
		return
	}
	NetexParseDuration.Record(ctx, d.Seconds())
	ParserPayloadSize.Record(ctx, int64(size))
}

func RecordStage(ctx context.Context, stage string, d time.Duration) {
	if !IsEnabled() {
		return
	}
	ExportStageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRun records a finished export run with its status ("success" or "error").
func RecordRun(ctx context.Context, status string, d time.Duration) {
	if !IsEnabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	ExportRunsTotal.Add(ctx, 1, attrs)
	ExportRunDuration.Record(ctx, d.Seconds(), attrs)
}

func RecordRunSkipped(ctx context.Context) {
	if !IsEnabled() {
		return
	}
	ExportRunsSkipped.Add(ctx, 1)
}

func RecordError(ctx context.Context, stage, errorType string) {
	if !IsEnabled() {
		return
	}
	ExportErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("error.type", errorType),
	))
}

func RecordArchiveSize(ctx context.Context, size int) {
	if !IsEnabled() {
		return
	}
	ExportArchiveSize.Record(ctx, int64(size))
}

func RecordDocuments(ctx context.Context, layer string, n int) {
	if !IsEnabled() || n == 0 {
		return
	}
	DocumentsProduced.Add(ctx, int64(n), metric.WithAttributes(attribute.String("layer", layer)))
}

func RecordDropped(ctx context.Context, reason string, n int) {
	if !IsEnabled() || n == 0 {
		return
	}
	DocumentsDropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func TrackInFlight(ctx context.Context) func() {
	if !IsEnabled() {
		return func() {}
	}
	DocumentsInFlight.Add(ctx, 1)
	return func() { DocumentsInFlight.Add(ctx, -1) }
}

func RecordBlobOperation(ctx context.Context, backend, op, status string, d time.Duration) {
	if !IsEnabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("blob.backend", backend),
		attribute.String("blob.operation", op),
		attribute.String("status", status),
	)
	BlobOperationsTotal.Add(ctx, 1, attrs)
	BlobOperationDuration.Record(ctx, d.Seconds(), attrs)
}

func RecordBlobRetry(ctx context.Context, op string) {
	if !IsEnabled() {
		return
	}
	BlobRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("blob.operation", op)))
}

// RecordHTTPClientRequest records one outbound request following the OTEL
// HTTP client conventions. Sizes below zero are unknown and left out.
func RecordHTTPClientRequest(ctx context.Context, method, host string, statusCode int, d time.Duration, reqSize, respSize int64) {
	if !IsEnabled() {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("server.address", host),
		attribute.Int("http.response.status_code", statusCode),
	)
	HTTPClientRequestDuration.Record(ctx, d.Seconds(), attrs)
	if reqSize >= 0 {
		HTTPClientRequestBodySize.Record(ctx, reqSize, attrs)
	}
	if respSize >= 0 {
		HTTPClientResponseBodySize.Record(ctx, respSize, attrs)
	}
}
