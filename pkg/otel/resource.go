package otel

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const ServiceName = "bahamut"

// Version is overridden at build time:
//
//	go build -ldflags="-X bahamut/pkg/otel.Version=1.2.3"
var Version = "dev"

// NewResource describes this exporter instance to both providers. Attributes
// from OTEL_RESOURCE_ATTRIBUTES are merged in, and extra attributes such as
// the input bucket are appended.
func NewResource(extra ...attribute.KeyValue) (*resource.Resource, error) {
	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(Version),
		semconv.ServiceNamespace(envOr("OTEL_SERVICE_NAMESPACE", "geocoder")),
		semconv.ServiceInstanceID(instanceID()),
		semconv.DeploymentEnvironment(envOr("OTEL_DEPLOYMENT_ENVIRONMENT", "dev")),
		semconv.ProcessRuntimeName("go"),
		semconv.ProcessRuntimeVersion(runtime.Version()),
	}, extra...)

	return resource.New(context.Background(),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attrs...),
	)
}

// instanceID is the pod hostname when there is one.
func instanceID() string {
	if id := os.Getenv("OTEL_SERVICE_INSTANCE_ID"); id != "" {
		return id
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("%s-%d", ServiceName, os.Getpid())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
