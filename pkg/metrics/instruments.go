package metrics

import (
	"go.opentelemetry.io/otel/metric"
)

// HTTP Client Metrics (OTEL Semantic Conventions)
var (
	// HTTPClientRequestDuration measures the duration of HTTP client requests
	HTTPClientRequestDuration metric.Float64Histogram

	// HTTPClientRequestBodySize measures the size of HTTP request bodies
	HTTPClientRequestBodySize metric.Int64Histogram

	// HTTPClientResponseBodySize measures the size of HTTP response bodies
	HTTPClientResponseBodySize metric.Int64Histogram
)

// Export run metrics
var (
	// ExportRunsTotal counts export runs by status
	ExportRunsTotal metric.Int64Counter

	// ExportRunsSkipped counts ticks dropped because a run was still in progress
	ExportRunsSkipped metric.Int64Counter

	// ExportRunDuration measures the duration of a whole export run
	ExportRunDuration metric.Float64Histogram

	// ExportStageDuration measures duration per run stage
	ExportStageDuration metric.Float64Histogram

	// ExportErrorsTotal counts errors by stage and type
	ExportErrorsTotal metric.Int64Counter

	// ExportArchiveSize measures the size of the produced zip archive
	ExportArchiveSize metric.Int64Histogram
)

// Document metrics
var (
	// DocumentsProduced counts documents emitted, by layer
	DocumentsProduced metric.Int64Counter

	// DocumentsDropped counts documents filtered out, by reason
	DocumentsDropped metric.Int64Counter

	// DocumentsInFlight tracks stop places being mapped concurrently
	DocumentsInFlight metric.Int64UpDownCounter
)

// Parser metrics
var (
	// NetexParseDuration measures NeTEx parsing duration
	NetexParseDuration metric.Float64Histogram

	// ParserPayloadSize measures the size of NeTEx payloads being parsed
	ParserPayloadSize metric.Int64Histogram
)

// Blob store metrics
var (
	// BlobOperationsTotal counts blob operations by operation and status
	BlobOperationsTotal metric.Int64Counter

	// BlobOperationDuration measures blob operation latency
	BlobOperationDuration metric.Float64Histogram

	// BlobRetries counts retry attempts of blob operations
	BlobRetries metric.Int64Counter
)

var sizeBuckets = []float64{1024, 102400, 1048576, 10485760, 104857600, 524288000} // 1KB to 500MB

// initializeInstruments creates all metric instruments
func initializeInstruments() error {
	var err error

	HTTPClientRequestDuration, err = Meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return err
	}

	HTTPClientRequestBodySize, err = Meter.Int64Histogram(
		"http.client.request.body.size",
		metric.WithDescription("Size of HTTP request bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	)
	if err != nil {
		return err
	}

	HTTPClientResponseBodySize, err = Meter.Int64Histogram(
		"http.client.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	)
	if err != nil {
		return err
	}

	ExportRunsTotal, err = Meter.Int64Counter(
		"export.runs.total",
		metric.WithDescription("Total number of export runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	ExportRunsSkipped, err = Meter.Int64Counter(
		"export.runs.skipped",
		metric.WithDescription("Scheduled runs skipped because a run was in progress"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	ExportRunDuration, err = Meter.Float64Histogram(
		"export.run.duration",
		metric.WithDescription("Duration of export runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 1200),
	)
	if err != nil {
		return err
	}

	ExportStageDuration, err = Meter.Float64Histogram(
		"export.stage.duration",
		metric.WithDescription("Duration per export stage"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 300.0),
	)
	if err != nil {
		return err
	}

	ExportErrorsTotal, err = Meter.Int64Counter(
		"export.errors.total",
		metric.WithDescription("Total errors by stage and type"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	ExportArchiveSize, err = Meter.Int64Histogram(
		"export.archive.size",
		metric.WithDescription("Size of the produced export archive"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	)
	if err != nil {
		return err
	}

	DocumentsProduced, err = Meter.Int64Counter(
		"documents.produced",
		metric.WithDescription("Search documents produced, by layer"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return err
	}

	DocumentsDropped, err = Meter.Int64Counter(
		"documents.dropped",
		metric.WithDescription("Entities or documents filtered out, by reason"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return err
	}

	DocumentsInFlight, err = Meter.Int64UpDownCounter(
		"documents.in_flight",
		metric.WithDescription("Stop place trees currently being mapped"),
		metric.WithUnit("{tree}"),
	)
	if err != nil {
		return err
	}

	NetexParseDuration, err = Meter.Float64Histogram(
		"netex.parse.duration",
		metric.WithDescription("Duration of NeTEx parsing operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0, 180.0),
	)
	if err != nil {
		return err
	}

	ParserPayloadSize, err = Meter.Int64Histogram(
		"parser.payload.size",
		metric.WithDescription("Size of NeTEx payloads being parsed"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	)
	if err != nil {
		return err
	}

	BlobOperationsTotal, err = Meter.Int64Counter(
		"blob.operations.total",
		metric.WithDescription("Blob store operations by operation and status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	BlobOperationDuration, err = Meter.Float64Histogram(
		"blob.operation.duration",
		metric.WithDescription("Duration of blob store operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0),
	)
	if err != nil {
		return err
	}

	BlobRetries, err = Meter.Int64Counter(
		"blob.retries",
		metric.WithDescription("Retry attempts of blob store operations"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	return nil
}
