package tracer

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"honeypot/internal/domain"
	"honeypot/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())

	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Errorf("expected noop provider, got %T", otel.GetTracerProvider())
	}
}

func TestSetupStdout(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "stdout"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
}

func TestSetupEmptyExporter(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: ""})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())

	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Errorf("expected noop provider for empty exporter, got %T", otel.GetTracerProvider())
	}
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "jaeger"})
	if err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	return rec
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestRouteSpanSucceeds(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartRoute(context.Background(), "01J", domain.EventKindMessage, "session-1")
	Finish(span, nil)
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "router.route" || s.Status().Code != codes.Ok {
		t.Errorf("span %q status %v, want router.route Ok", s.Name(), s.Status().Code)
	}
	if got := attrValue(s.Attributes(), "session"); got != "session-1" {
		t.Errorf("session attr = %q", got)
	}
	if got := attrValue(s.Attributes(), "event.kind"); got != string(domain.EventKindMessage) {
		t.Errorf("event.kind attr = %q", got)
	}
}

func TestDeliverySpanRecordsErrorCode(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartDelivery(context.Background(), domain.SinkKindWebhook, "https://example.com/hook?***")
	Finish(span, domain.NewDomainError("WebhookSink.Deliver", domain.ErrDeliveryFailed, "timeout"))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if got := attrValue(s.Attributes(), "error.code"); got != string(domain.CodeDelivery) {
		t.Errorf("error.code = %q, want %q", got, domain.CodeDelivery)
	}
	if len(s.Events()) == 0 {
		t.Error("expected the error to be recorded as a span event")
	}
}
