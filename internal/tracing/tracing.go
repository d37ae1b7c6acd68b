// Package tracing sets up the global OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// Options configures Init.
type Options struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is informational only. It is logged at startup; spans always
	// go to Writer.
	Endpoint string
	// Writer receives exported spans. Defaults to stdout.
	Writer io.Writer
	Logger *zap.Logger
}

// Init installs a tracer provider and returns its shutdown function.
func Init(opts Options) (func(context.Context) error, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	if opts.Endpoint != "" {
		log.Info("otlp endpoint configured, spans are written by the stdout exporter",
			zap.String("otlp_endpoint", opts.Endpoint))
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Create resource with service information
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
