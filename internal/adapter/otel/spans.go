package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "drsorch"

// StartPollSpan starts a span covering one monitor poll cycle.
func StartPollSpan(ctx context.Context) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "monitor.poll")
}

// StartReconcileSpan starts a span for reconciling one execution snapshot.
func StartReconcileSpan(ctx context.Context, executionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "monitor.reconcile",
		trace.WithAttributes(
			attribute.String("execution.id", executionID),
		),
	)
}

// StartCommandSpan starts a span for a lifecycle command against an execution.
func StartCommandSpan(ctx context.Context, executionID, command string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "command",
		trace.WithAttributes(
			attribute.String("execution.id", executionID),
			attribute.String("command.name", command),
		),
	)
}
