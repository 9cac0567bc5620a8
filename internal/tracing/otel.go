package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// otelTracer adapts an OpenTelemetry tracer to the Tracer interface, so
// cmd/distributor can wire a real exporter without the core package ever
// importing otel.
type otelTracer struct {
	tracer oteltrace.Tracer
}

// OTel builds a Tracer backed by the OpenTelemetry tracer registered under
// instrumentationName (typically the module path).
func OTel(instrumentationName string) Tracer {
	return otelTracer{tracer: otel.Tracer(instrumentationName)}
}

func (t otelTracer) Start(ctx context.Context, operation string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, operation)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span oteltrace.Span
}

func (s otelSpan) SetError(err error) {
	if err == nil {
		return
	}
	s.span.SetStatus(codes.Error, err.Error())
	s.span.AddEvent("error", oteltrace.WithAttributes(attribute.String("message", err.Error())))
}

func (s otelSpan) End() {
	s.span.End()
}
