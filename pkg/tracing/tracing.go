package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer sets the tracer used by StartSpan.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a new span with the given name. Without a tracer it returns the span already in ctx.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID of the active span, or "" when there is none.
func GetTraceID(ctx context.Context) string {
	if tracer == nil {
		return ""
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// TenantAttr is the attribute every tenant scoped span carries.
func TenantAttr(tenantID string) attribute.KeyValue {
	return attribute.String("tenant.id", tenantID)
}
