package main

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"

	"famgraph/internal/config"
	"famgraph/internal/core"
	"famgraph/internal/logging"
)

// tracing is the tracer handed to the service and the hook that flushes and
// releases whatever backs it.
type tracing struct {
	tracer   core.Tracer
	shutdown func(context.Context) error
}

// setupTracing installs the global tracer provider. An OTLP endpoint gets a
// batching exporter; otherwise spans go to the JSON-lines trace file when one
// is configured, and are dropped when it is not.
func setupTracing(ctx context.Context, cfg config.TracingConfig, logger *logging.Logger) (tracing, error) {
	if cfg.OTLPEnabled() {
		return setupOTLP(ctx, cfg, logger)
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
	if cfg.File == "" {
		logger.Info("tracing disabled", "reason", "OTEL_EXPORTER_OTLP_ENDPOINT and FAMGRAPH_TRACE_FILE not set")
		return tracing{
			tracer:   core.NewOTelTracer(noop.NewTracerProvider()),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return tracing{}, fmt.Errorf("open trace file: %w", err)
	}
	logger.Info("tracing to file", "path", cfg.File)
	return tracing{
		tracer:   core.NewJSONTracer(f),
		shutdown: func(context.Context) error { return f.Close() },
	}, nil
}

func setupOTLP(ctx context.Context, cfg config.TracingConfig, logger *logging.Logger) (tracing, error) {
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return tracing{}, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
		resource.WithFromEnv(),
		resource.WithProcess(),
	)
	if err != nil {
		logger.Warn("otel resource detection failed", "error", err)
		res = resource.Empty()
	}
	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	logger.Info("otlp tracing enabled", "endpoint", cfg.OTLPEndpoint, "service", cfg.ServiceName, "sample_ratio", cfg.SampleRatio)
	return tracing{tracer: core.NewOTelTracer(tp), shutdown: tp.Shutdown}, nil
}
