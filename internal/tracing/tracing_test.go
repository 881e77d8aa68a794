package tracing

import (
	"context"
	"testing"
	"time"
)

func shutdownProvider(t *testing.T, p *Provider) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{
		ServiceName: "anthology-api",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got %v", err)
	}
	if provider == nil {
		t.Fatal("expected provider to be non-nil")
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
}

func TestNewProvider_MissingServiceName(t *testing.T) {
	_, err := NewProvider(Config{
		Enabled:      true,
		SamplingRate: 0.1,
	})
	if err == nil {
		t.Fatal("expected error for missing service name")
	}
}

func TestNewProvider_InvalidSamplingRate(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.5} {
		_, err := NewProvider(Config{
			ServiceName:  "anthology-api",
			Enabled:      true,
			SamplingRate: rate,
		})
		if err == nil {
			t.Errorf("expected error for sampling rate %f", rate)
		}
	}
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(Config{
		ServiceName:  "anthology-api",
		Enabled:      true,
		ExporterType: "zipkin-v1",
		SamplingRate: 0.1,
	})
	if err == nil {
		t.Fatal("expected error for unsupported exporter type")
	}
}

func TestNewProvider_ValidConfig(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
		samplingRate float64
		endpoint     string
		insecure     bool
	}{
		{
			name:         "otlp-http sampled at 10 percent",
			exporterType: "otlp-http",
			samplingRate: 0.1,
			endpoint:     "localhost:4318",
			insecure:     true,
		},
		{
			name:         "otlp-grpc fully sampled",
			exporterType: "otlp-grpc",
			samplingRate: 1.0,
			endpoint:     "localhost:4317",
			insecure:     true,
		},
		{
			name:         "default exporter unsampled",
			exporterType: "",
			samplingRate: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(Config{
				ServiceName:  "anthology-api",
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporterType,
				OTLPEndpoint: tt.endpoint,
				SamplingRate: tt.samplingRate,
				InsecureMode: tt.insecure,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}
			shutdownProvider(t, provider)
		})
	}
}

func TestProvider_Tracer(t *testing.T) {
	provider, err := NewProvider(Config{
		ServiceName:  "anthology-api",
		Enabled:      true,
		Environment:  "test",
		ExporterType: "otlp-http",
		SamplingRate: 1.0,
		InsecureMode: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdownProvider(t, provider)

	tracer := provider.Tracer("ranking")
	if tracer == nil {
		t.Fatal("expected non-nil tracer")
	}

	_, span := tracer.Start(context.Background(), "score_candidates")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
}

func TestProvider_Shutdown_NoTracerProvider(t *testing.T) {
	provider := &Provider{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("unexpected error on shutdown: %v", err)
	}
}
