package otel

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Protocol is an OTLP transport.
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

// SignalType is the telemetry signal an exporter carries.
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
)

const defaultExportTimeout = 10 * time.Second

// ExporterConfig is the resolved OTLP exporter setup for one signal.
type ExporterConfig struct {
	Endpoint    string
	Protocol    Protocol
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
}

// Gzip reports whether payloads are gzip compressed.
func (c ExporterConfig) Gzip() bool {
	return strings.EqualFold(c.Compression, "gzip")
}

// Getenv looks up one environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

func IsTracingEnabled() bool {
	return isTrue(os.Getenv("OTEL_TRACING_ENABLED"))
}

func IsMetricsEnabled() bool {
	return isTrue(os.Getenv("OTEL_METRICS_ENABLED"))
}

// GetExporterConfig resolves the exporter for signal from the process environment.
func GetExporterConfig(signal SignalType) ExporterConfig {
	return ResolveExporterConfig(signal, os.Getenv)
}

// ResolveExporterConfig follows the OTLP exporter variables. A signal
// specific variable (OTEL_EXPORTER_OTLP_TRACES_*) wins over the shared one
// (OTEL_EXPORTER_OTLP_*).
func ResolveExporterConfig(signal SignalType, getenv Getenv) ExporterConfig {
	lookup := func(suffix string) string {
		if v := getenv("OTEL_EXPORTER_OTLP_" + strings.ToUpper(string(signal)) + "_" + suffix); v != "" {
			return v
		}
		return getenv("OTEL_EXPORTER_OTLP_" + suffix)
	}

	cfg := ExporterConfig{
		Protocol:    parseProtocol(lookup("PROTOCOL")),
		Headers:     parseHeaders(lookup("HEADERS")),
		Timeout:     parseTimeout(lookup("TIMEOUT")),
		Compression: lookup("COMPRESSION"),
	}

	// Only the shared endpoint gets the /v1/<signal> path appended.
	signalEndpoint := getenv("OTEL_EXPORTER_OTLP_" + strings.ToUpper(string(signal)) + "_ENDPOINT")
	switch {
	case signalEndpoint != "":
		cfg.Endpoint = normalizeEndpoint(signalEndpoint, cfg.Protocol)
	case getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "":
		cfg.Endpoint = withSignalPath(normalizeEndpoint(getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), cfg.Protocol), signal, cfg.Protocol)
	case cfg.Protocol == ProtocolGRPC:
		cfg.Endpoint = "localhost:4317"
	default:
		cfg.Endpoint = "http://localhost:4318/v1/" + string(signal)
	}

	if v := lookup("INSECURE"); v != "" {
		cfg.Insecure = isTrue(v)
	} else {
		cfg.Insecure = strings.HasPrefix(cfg.Endpoint, "http://")
	}
	return cfg
}

func parseProtocol(s string) Protocol {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grpc":
		return ProtocolGRPC
	case "http/json":
		return ProtocolHTTPJSON
	default:
		return ProtocolHTTPProtobuf
	}
}

// normalizeEndpoint reduces gRPC endpoints to host:port and gives HTTP
// endpoints a scheme, https unless one is given.
func normalizeEndpoint(endpoint string, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
		host, _, _ := strings.Cut(endpoint, "/")
		return host
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "https://" + endpoint
	}
	return endpoint
}

func withSignalPath(endpoint string, signal SignalType, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		return endpoint
	}
	signalPath := "/v1/" + string(signal)
	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + signalPath
	}
	if !strings.HasSuffix(u.Path, signalPath) {
		u.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	}
	return u.String()
}

// parseHeaders reads "k1=v1,k2=v2". Values keep everything after the first
// "=", so base64 credentials survive.
func parseHeaders(s string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = value
	}
	return headers
}

// parseTimeout accepts a Go duration or plain milliseconds.
func parseTimeout(s string) time.Duration {
	if s == "" {
		return defaultExportTimeout
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultExportTimeout
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
