package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
)

func envMap(m map[string]string) Getenv {
	return func(key string) string { return m[key] }
}

func TestResolveExporterConfig(t *testing.T) {
	tests := []struct {
		name   string
		signal SignalType
		env    map[string]string
		want   ExporterConfig
	}{
		{
			name:   "defaults",
			signal: SignalTraces,
			env:    map[string]string{},
			want: ExporterConfig{
				Endpoint: "http://localhost:4318/v1/traces",
				Protocol: ProtocolHTTPProtobuf,
				Timeout:  10 * time.Second,
				Insecure: true,
			},
		},
		{
			name:   "grpc default endpoint",
			signal: SignalMetrics,
			env:    map[string]string{"OTEL_EXPORTER_OTLP_PROTOCOL": "grpc"},
			want: ExporterConfig{
				Endpoint: "localhost:4317",
				Protocol: ProtocolGRPC,
				Timeout:  10 * time.Second,
			},
		},
		{
			name:   "shared endpoint gets signal path",
			signal: SignalMetrics,
			env: map[string]string{
				"OTEL_EXPORTER_OTLP_ENDPOINT":    "otlp.example.com/otlp",
				"OTEL_EXPORTER_OTLP_TIMEOUT":     "2500",
				"OTEL_EXPORTER_OTLP_COMPRESSION": "gzip",
			},
			want: ExporterConfig{
				Endpoint:    "https://otlp.example.com/otlp/v1/metrics",
				Protocol:    ProtocolHTTPProtobuf,
				Timeout:     2500 * time.Millisecond,
				Compression: "gzip",
			},
		},
		{
			name:   "signal endpoint used as is",
			signal: SignalTraces,
			env: map[string]string{
				"OTEL_EXPORTER_OTLP_ENDPOINT":        "http://shared:4318",
				"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "http://tempo:4318/custom",
				"OTEL_EXPORTER_OTLP_TRACES_TIMEOUT":  "3s",
				"OTEL_EXPORTER_OTLP_TIMEOUT":         "9s",
			},
			want: ExporterConfig{
				Endpoint: "http://tempo:4318/custom",
				Protocol: ProtocolHTTPProtobuf,
				Timeout:  3 * time.Second,
				Insecure: true,
			},
		},
		{
			name:   "grpc strips scheme and path",
			signal: SignalTraces,
			env: map[string]string{
				"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL": "grpc",
				"OTEL_EXPORTER_OTLP_ENDPOINT":        "https://collector:4317/ignored",
				"OTEL_EXPORTER_OTLP_INSECURE":        "yes",
			},
			want: ExporterConfig{
				Endpoint: "collector:4317",
				Protocol: ProtocolGRPC,
				Timeout:  10 * time.Second,
				Insecure: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveExporterConfig(tt.signal, envMap(tt.env))
			if got.Endpoint != tt.want.Endpoint {
				t.Errorf("Endpoint = %q, want %q", got.Endpoint, tt.want.Endpoint)
			}
			if got.Protocol != tt.want.Protocol {
				t.Errorf("Protocol = %q, want %q", got.Protocol, tt.want.Protocol)
			}
			if got.Timeout != tt.want.Timeout {
				t.Errorf("Timeout = %v, want %v", got.Timeout, tt.want.Timeout)
			}
			if got.Insecure != tt.want.Insecure {
				t.Errorf("Insecure = %v, want %v", got.Insecure, tt.want.Insecure)
			}
			if got.Compression != tt.want.Compression {
				t.Errorf("Compression = %q, want %q", got.Compression, tt.want.Compression)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("Authorization=Basic dXNlcjpwYXNz==, X-Scope-OrgID = geocoder ,broken,=empty")
	if len(got) != 2 {
		t.Fatalf("expected 2 headers, got %v", got)
	}
	if got["Authorization"] != "Basic dXNlcjpwYXNz==" {
		t.Errorf("Authorization = %q", got["Authorization"])
	}
	if got["X-Scope-OrgID"] != " geocoder" {
		t.Errorf("X-Scope-OrgID = %q", got["X-Scope-OrgID"])
	}
}

func TestSplitEndpoint(t *testing.T) {
	host, urlPath, err := splitEndpoint("https://otlp.example.com:443/otlp/v1/traces")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "otlp.example.com:443" || urlPath != "/otlp/v1/traces" {
		t.Errorf("got host %q path %q", host, urlPath)
	}
	if _, _, err := splitEndpoint("localhost:4318"); err == nil {
		t.Error("expected error for endpoint without scheme")
	}
}

func TestRecordErrorOnNoopSpan(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "op")
	RecordError(span, errors.New("boom"), ErrorTypeStorage, true)
	SetSpanOk(span)
	span.End()
}
