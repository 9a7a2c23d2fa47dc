package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for stagehand spans.
var (
	AttrStage   = attribute.Key("stagehand.stage")
	AttrCursor  = attribute.Key("stagehand.cursor")
	AttrDelta   = attribute.Key("stagehand.delta")
	AttrOutcome = attribute.Key("stagehand.outcome")
)

// StartSpan is a convenience wrapper that starts an internal span with common
// attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}
