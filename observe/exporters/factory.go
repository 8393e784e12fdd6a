// Package exporters builds the OpenTelemetry exporters an imagecache
// observer can ship spans and metrics to.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter names accepted by the factories. An empty name means None.
const (
	Stdout     = "stdout"
	OTLP       = "otlp"
	Prometheus = "prometheus"
	None       = "none"
)

// TracingNames and MetricsNames list the names each factory accepts.
var (
	TracingNames = []string{OTLP, Stdout, None, ""}
	MetricsNames = []string{OTLP, Prometheus, Stdout, None, ""}
)

// ErrEndpointNotConfigured indicates a required endpoint environment variable is not set.
var ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")

// ErrUnknownExporter indicates an exporter name no factory supports.
var ErrUnknownExporter = errors.New("exporters: unknown exporter")

// Environment variables consulted by the OTLP exporters.
const (
	EnvOTLPEndpoint        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPTracesEndpoint  = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	EnvOTLPMetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
)

// NewTracingExporter creates the span exporter called name. None returns a
// nil exporter: spans are sampled but not shipped anywhere.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case Stdout:
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	case OTLP:
		if firstEnv(EnvOTLPEndpoint, EnvOTLPTracesEndpoint) == "" {
			return nil, fmt.Errorf("%w: set %s or %s", ErrEndpointNotConfigured, EnvOTLPEndpoint, EnvOTLPTracesEndpoint)
		}
		return otlptracegrpc.New(ctx)
	case None, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: tracing %q", ErrUnknownExporter, name)
	}
}

// NewMetricsReader creates the metrics reader called name. None returns a
// nil reader: instruments record into a provider nobody collects from.
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	switch name {
	case Stdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("exporters: stdout metrics: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case OTLP:
		if firstEnv(EnvOTLPEndpoint, EnvOTLPMetricsEndpoint) == "" {
			return nil, fmt.Errorf("%w: set %s or %s", ErrEndpointNotConfigured, EnvOTLPEndpoint, EnvOTLPMetricsEndpoint)
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("exporters: otlp metrics: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case Prometheus:
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("exporters: prometheus: %w", err)
		}
		return exp, nil
	case None, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
