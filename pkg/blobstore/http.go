package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bahamut/pkg/metrics"
	"bahamut/pkg/otel"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	backendHTTP = "http"
	userAgent   = "bahamut/1.0.0"
)

// HTTP talks to an object server that exposes blobs as {base}/{bucket}/{name}.
// GET reads a blob and PUT writes one. The server has no copy verb, so
// Copy downloads the source and uploads it under the destination.
type HTTP struct {
	httpClient *http.Client
	baseURL    string
	bucket     string
	token      string
	tracer     trace.Tracer
}

func NewHTTP(baseURL, bucket, token string) (*HTTP, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid blob store base URL %q: %w", baseURL, err)
	}
	if bucket == "" {
		return nil, fmt.Errorf("blob store bucket is required")
	}

	// Create HTTP client with OpenTelemetry instrumentation
	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   30 * time.Second,
	}

	return &HTTP{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		token:      token,
		tracer:     otelapi.Tracer("blobstore-http"),
	}, nil
}

func (s *HTTP) objectURL(bucket, name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	segments := strings.Split(cleaned, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, url.PathEscape(bucket), strings.Join(segments, "/")), nil
}

func (s *HTTP) Get(ctx context.Context, name string) (data []byte, err error) {
	ctx, span := s.tracer.Start(ctx, "blobstore.get",
		trace.WithAttributes(
			attribute.String("blob.bucket", s.bucket),
			attribute.String("blob.name", name),
		),
	)
	defer span.End()
	defer func(start time.Time) { observe(ctx, backendHTTP, OpGet, start, err) }(time.Now())

	data, err = s.get(ctx, span, s.bucket, name)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.size_bytes", len(data)))
	otel.SetSpanOk(span)
	return data, nil
}

func (s *HTTP) Put(ctx context.Context, name string, data []byte) (err error) {
	ctx, span := s.tracer.Start(ctx, "blobstore.put",
		trace.WithAttributes(
			attribute.String("blob.bucket", s.bucket),
			attribute.String("blob.name", name),
			attribute.Int("request.size_bytes", len(data)),
		),
	)
	defer span.End()
	defer func(start time.Time) { observe(ctx, backendHTTP, OpPut, start, err) }(time.Now())

	if err = s.put(ctx, span, s.bucket, name, data); err != nil {
		return err
	}
	otel.SetSpanOk(span)
	return nil
}

func (s *HTTP) Copy(ctx context.Context, name, destBucket, destName string) (err error) {
	ctx, span := s.tracer.Start(ctx, "blobstore.copy",
		trace.WithAttributes(
			attribute.String("blob.bucket", s.bucket),
			attribute.String("blob.name", name),
			attribute.String("blob.dest_bucket", destBucket),
			attribute.String("blob.dest_name", destName),
		),
	)
	defer span.End()
	defer func(start time.Time) { observe(ctx, backendHTTP, OpCopy, start, err) }(time.Now())

	data, err := s.get(ctx, span, s.bucket, name)
	if err != nil {
		return err
	}
	if err = s.put(ctx, span, destBucket, destName, data); err != nil {
		return err
	}
	otel.SetSpanOk(span)
	return nil
}

func (s *HTTP) get(ctx context.Context, span trace.Span, bucket, name string) ([]byte, error) {
	u, err := s.objectURL(bucket, name)
	if err != nil {
		otel.RecordError(span, err, otel.ErrorTypeValidation, false)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		otel.RecordError(span, err, otel.ErrorTypeHTTP, false)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := s.do(ctx, span, req, -1)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		err := fmt.Errorf("%s/%s: %w", bucket, name, ErrNotFound)
		otel.RecordError(span, err, otel.ErrorTypeNotFound, false)
		return nil, err
	}
	if err := statusError(resp); err != nil {
		otel.RecordError(span, err, otel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		otel.RecordError(span, err, otel.ErrorTypeNetwork, true)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (s *HTTP) put(ctx context.Context, span trace.Span, bucket, name string, data []byte) error {
	u, err := s.objectURL(bucket, name)
	if err != nil {
		otel.RecordError(span, err, otel.ErrorTypeValidation, false)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
	if err != nil {
		otel.RecordError(span, err, otel.ErrorTypeHTTP, false)
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType(name))

	resp, err := s.do(ctx, span, req, int64(len(data)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		otel.RecordError(span, err, otel.ErrorTypeHTTP, resp.StatusCode >= 500)
		return err
	}
	return nil
}

// do sends the request with the shared headers and records client metrics.
func (s *HTTP) do(ctx context.Context, span trace.Span, req *http.Request, reqSize int64) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	span.SetAttributes(
		attribute.String("http.url", req.URL.String()),
		attribute.String("http.method", req.Method),
		attribute.Bool("auth.enabled", s.token != ""),
	)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		otel.RecordError(span, err, otel.ErrorTypeNetwork, true)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	metrics.RecordHTTPClientRequest(ctx, req.Method, req.URL.Host, resp.StatusCode, time.Since(start), reqSize, resp.ContentLength)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("blob store returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".zip"):
		return "application/zip"
	case strings.HasSuffix(name, ".csv"):
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
