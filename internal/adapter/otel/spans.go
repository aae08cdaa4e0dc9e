package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "aruna"

// StartChatSpan starts a span for one agent chat request.
func StartChatSpan(ctx context.Context, runID, businessID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent.chat",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("business.id", businessID),
		),
	)
}

// StartModelSpan starts a span for one model round-trip.
func StartModelSpan(ctx context.Context, model string, iteration int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "model.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("model", model),
			attribute.Int("loop.iteration", iteration),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a run.
func StartToolCallSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
