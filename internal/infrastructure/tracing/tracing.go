package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Config holds tracer provider configuration.
type Config struct {
	Exporter    string // none, stdout
	ServiceName string
	// SampleRatio is the fraction of root spans kept, between 0 and 1.
	SampleRatio float64
	// Output defaults to stdout.
	Output io.Writer
}

// NewProvider builds a TracerProvider that batches spans to the configured exporter.
// It returns nil when tracing is disabled.
func NewProvider(cfg Config) (*sdktrace.TracerProvider, error) {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(output))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

// Install makes tp the global provider and returns a function that flushes and stops it.
func Install(tp *sdktrace.TracerProvider) func(ctx context.Context) error {
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
