// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 KodBank Contributors

package observability

import (
	"context"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// TracingConfig configures SetupTracing.
type TracingConfig struct {
	Service string
	Version string
	// Endpoint is an OTLP/HTTP collector URL. When empty, spans still carry
	// trace and span IDs for log correlation but are never exported.
	Endpoint string
}

// SetupTracing installs the global tracer provider and the W3C trace-context
// propagator, so an incoming traceparent header continues the caller's trace.
// The returned shutdown flushes pending spans and should be deferred.
func SetupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.Service),
		attribute.String("service.version", cfg.Version),
	))
	if err != nil {
		return nil, oops.Code("TRACING_SETUP_FAILED").With("operation", "build resource").Wrap(err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		if err != nil {
			return nil, oops.Code("TRACING_SETUP_FAILED").
				With("operation", "create exporter").
				With("endpoint", cfg.Endpoint).
				Wrap(err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
