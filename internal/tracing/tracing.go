// Package tracing sets up OpenTelemetry for the API server and provides
// span helpers for the serving pipeline and storage layers.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const exporterDialTimeout = 10 * time.Second

// Config holds tracing configuration.
type Config struct {
	ServiceName  string
	Enabled      bool
	Environment  string
	ExporterType string // otlp-grpc or otlp-http (default)
	OTLPEndpoint string
	SamplingRate float64 // fraction of traces sampled, 0.0 to 1.0
	InsecureMode bool    // disable TLS for OTLP, dev only
}

func (c Config) validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("tracing: service name is required")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("tracing: sampling rate %g outside [0, 1]", c.SamplingRate)
	}
	switch c.ExporterType {
	case "otlp-grpc", "otlp-http", "":
		return nil
	default:
		return fmt.Errorf("tracing: unknown exporter %q", c.ExporterType)
	}
}

func (c Config) exporter() (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), exporterDialTimeout)
	defer cancel()

	if c.ExporterType == "otlp-grpc" {
		var opts []otlptracegrpc.Option
		if c.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(c.OTLPEndpoint))
		}
		if c.InsecureMode {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	var opts []otlptracehttp.Option
	if c.OTLPEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(c.OTLPEndpoint))
	}
	if c.InsecureMode {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func (c Config) sampler() sdktrace.Sampler {
	switch c.SamplingRate {
	case 1.0:
		return sdktrace.AlwaysSample()
	case 0.0:
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(c.SamplingRate)
}

// Provider owns the tracer provider lifecycle. A disabled provider is a
// valid no-op: Tracer falls back to the global and Shutdown does nothing.
type Provider struct {
	tp      *sdktrace.TracerProvider
	enabled bool
}

// NewProvider configures the global tracer provider and W3C propagation.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		slog.Info("tracing disabled")
		return &Provider{}, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion("0.0.1"),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	exporter, err := cfg.exporter()
	if err != nil {
		return nil, fmt.Errorf("tracing: build exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("tracing initialized",
		"service", cfg.ServiceName,
		"exporter", cfg.ExporterType,
		"endpoint", cfg.OTLPEndpoint,
		"sampling_rate", cfg.SamplingRate,
	)
	return &Provider{tp: tp, enabled: true}, nil
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	slog.Info("shutting down tracer provider")
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing: shutdown: %w", err)
	}
	return nil
}

// Tracer returns a tracer for the given name.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// IsEnabled reports whether tracing was configured on.
func (p *Provider) IsEnabled() bool { return p.enabled }
