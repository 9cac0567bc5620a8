// Package tracing defines the minimal span interface the distributor's
// public operations use, with a no-op default so a concrete sink is
// always optional. The OpenTelemetry adapter in otel.go is the only file
// here that imports otel; the distributor consumes just the Tracer and
// Span interfaces and never imports otel itself.
package tracing

import "context"

// Span is the subset of span behavior the distributor needs: set an error
// and end. Attributes beyond the error message are a concern of whatever
// concrete Tracer produced the span.
type Span interface {
	SetError(err error)
	End()
}

// Tracer starts spans for named operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, Span)
}

// noop is the default Tracer: every operation is a span that does nothing.
type noop struct{}

// Noop returns a Tracer whose spans are no-ops, for deployments that don't
// wire a concrete tracing sink.
func Noop() Tracer { return noop{} }

func (noop) Start(ctx context.Context, operation string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetError(error) {}
func (noopSpan) End()           {}
