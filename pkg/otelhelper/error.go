package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span as failed: the error is recorded, span status
// flips to Error, and a request_failed event carries the extra attributes
// (endpoint, base URL, workflow id).
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("request_failed", trace.WithAttributes(attrs...))
}
