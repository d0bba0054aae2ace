package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/taskgrid/taskgrid")

// StartPlanSpan starts a span covering the asynchronous decomposition of a
// parent task into subtasks.
func StartPlanSpan(ctx context.Context, taskID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "taskgrid.plan",
		trace.WithAttributes(attribute.String("task.id", taskID)))
}
