package exporters

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestNewTracingExporter(t *testing.T) {
	tests := []struct {
		name    string
		wantNil bool
		wantErr error
	}{
		{name: Stdout},
		{name: None, wantNil: true},
		{name: "", wantNil: true},
		{name: "jaeger", wantErr: ErrUnknownExporter},
		{name: Prometheus, wantErr: ErrUnknownExporter},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exp, err := NewTracingExporter(context.Background(), tc.name)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got: %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTracingExporter(%q) error = %v", tc.name, err)
			}
			if (exp == nil) != tc.wantNil {
				t.Errorf("exporter = %v, want nil %v", exp, tc.wantNil)
			}
			if exp != nil {
				_ = exp.Shutdown(context.Background())
			}
		})
	}
}

// TestOTLPTracingRequiresEndpoint verifies OTLP without endpoint env fails.
func TestOTLPTracingRequiresEndpoint(t *testing.T) {
	t.Setenv(EnvOTLPEndpoint, "")
	t.Setenv(EnvOTLPTracesEndpoint, "")

	_, err := NewTracingExporter(context.Background(), OTLP)
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured, got: %v", err)
	}
}

// TestOTLPTracingWithEndpoint verifies the traces-specific env var is enough.
func TestOTLPTracingWithEndpoint(t *testing.T) {
	t.Setenv(EnvOTLPEndpoint, "")
	t.Setenv(EnvOTLPTracesEndpoint, "http://localhost:4317")

	exp, err := NewTracingExporter(context.Background(), OTLP)
	if err != nil {
		t.Fatalf("failed to create OTLP exporter with endpoint: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
	_ = exp.Shutdown(context.Background())
}

// TestOTLPMetricsRequiresEndpoint verifies the metrics-specific env var is honored.
func TestOTLPMetricsRequiresEndpoint(t *testing.T) {
	t.Setenv(EnvOTLPEndpoint, "")
	t.Setenv(EnvOTLPMetricsEndpoint, "")

	_, err := NewMetricsReader(context.Background(), OTLP)
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured, got: %v", err)
	}
}

func TestNewMetricsReader(t *testing.T) {
	for _, name := range []string{Stdout, Prometheus} {
		t.Run(name, func(t *testing.T) {
			reader, err := NewMetricsReader(context.Background(), name)
			if err != nil {
				t.Fatalf("NewMetricsReader(%q) error = %v", name, err)
			}
			if reader == nil {
				t.Fatal("expected non-nil reader")
			}
			_ = reader.Shutdown(context.Background())
		})
	}

	reader, err := NewMetricsReader(context.Background(), None)
	if err != nil || reader != nil {
		t.Errorf("NewMetricsReader(none) = %v, %v, want nil reader", reader, err)
	}
}

func TestNewMetricsReader_InvalidName(t *testing.T) {
	_, err := NewMetricsReader(context.Background(), "statsd")
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("expected ErrUnknownExporter, got: %v", err)
	}
}

// TestNames verifies every listed name is accepted by its factory.
func TestNames(t *testing.T) {
	for _, name := range TracingNames {
		if name == OTLP {
			continue
		}
		if _, err := NewTracingExporter(context.Background(), name); err != nil {
			t.Errorf("tracing name %q rejected: %v", name, err)
		}
	}
	if !slices.Contains(MetricsNames, Prometheus) || slices.Contains(TracingNames, Prometheus) {
		t.Error("prometheus is a metrics-only exporter")
	}
}
