// Package tracer records routing and delivery spans with OpenTelemetry.
package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"honeypot/internal/domain"
	"honeypot/internal/infra/config"
)

const tracerName = "honeypot"

// Setup installs the global tracer provider selected by cfg and returns its
// shutdown func. Spans go nowhere unless tracing is enabled with the stdout
// exporter.
func Setup(ctx context.Context, cfg config.TracerConfig) (func(context.Context) error, error) {
	discard := func(context.Context) error { return nil }

	if !cfg.Enabled || cfg.Exporter == "" || cfg.Exporter == "noop" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return discard, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", tracerName))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartRoute opens the span covering one inbound event.
func StartRoute(ctx context.Context, eventID string, kind domain.EventKind, session string) (context.Context, trace.Span) {
	return start(ctx, "router.route",
		attribute.String("event.id", eventID),
		attribute.String("event.kind", string(kind)),
		attribute.String("session", session),
	)
}

// StartDelivery opens the span covering one sink attempt. target must already
// be redacted.
func StartDelivery(ctx context.Context, kind domain.SinkKind, target string) (context.Context, trace.Span) {
	return start(ctx, "sink.deliver",
		attribute.String("sink.kind", string(kind)),
		attribute.String("sink.target", target),
	)
}

// Finish sets the span outcome. A failure carries its domain error code.
func Finish(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.code", string(domain.ErrorCodeOf(err))))
	span.SetStatus(codes.Error, err.Error())
}

func start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
