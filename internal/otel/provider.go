// Package otel provides OpenTelemetry tracer provider initialization and management.
package otel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/alpc-tracer/internal/config"
)

const exportTimeout = 10 * time.Second

// exporterOptions maps the configured endpoint onto otlptracehttp options.
// A bare host:port is plain HTTP; a full URL keeps its scheme and path.
// With no endpoint the exporter falls back to its own OTEL_* handling.
func exporterOptions(endpoint string) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(exportTimeout)}
	switch {
	case endpoint == "":
	case strings.Contains(endpoint, "://"):
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	default:
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	return opts
}

// InitProvider initializes the OpenTelemetry tracer provider with an
// OTLP/HTTP exporter and a batch span processor. Root spans are created
// in traceID.
//
// Note: The HTTP client honors HTTP_PROXY, HTTPS_PROXY, and NO_PROXY
// through Go's standard net/http transport.
func InitProvider(ctx context.Context, cfg *config.OTELConfig, traceID trace.TraceID, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	endpoint := cfg.Endpoint()
	logger.Info("OTEL configuration",
		zap.String("service_name", cfg.ServiceName),
		zap.String("endpoint", endpoint),
		zap.Int("resource_attributes", len(cfg.ResourceAttributes)),
		zap.Stringer("trace_id", traceID),
	)

	exporter, err := otlptracehttp.New(ctx, exporterOptions(endpoint)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	resourceAttrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}
	if len(cfg.ResourceAttributes) > 0 {
		resourceAttrs = append(resourceAttrs, resource.WithAttributes(cfg.ResourceAttributes...))
	}

	res, err := resource.New(ctx, resourceAttrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(TraceIDGenerator{TraceID: traceID}),
	), nil
}

// ShutdownProvider gracefully shuts down the tracer provider, flushing any remaining spans.
func ShutdownProvider(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}

	return nil
}
