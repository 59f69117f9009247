package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRegistryGet    = "registry.get"
	SpanRegistryCreate = "registry.create"
	SpanRegistryList   = "registry.list"
)

// Attribute keys.
const (
	AttrApiName     = "api.name"
	AttrApiFound    = "api.found"
	AttrApiCount    = "api.count"
	AttrCacheHit    = "cache.hit"
	AttrErrorType   = "error.type"
	AttrClientLimit = "api.client_limit"
	AttrPathCount   = "api.path_count"
)

// Event names.
const (
	EventEncoded  = "record.encoded"
	EventInserted = "record.inserted"
	EventFlushed  = "store.flushed"
	EventRemoved  = "record.removed"
)

// Start opens an internal span named name. A nil tracer yields a
// non-recording span.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records err on span, sets its status and ends it.
func Finish(span trace.Span, err error, errType string) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorType, errType))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
