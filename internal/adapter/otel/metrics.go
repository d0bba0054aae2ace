package otel

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service-level instruments.
type Metrics struct {
	TasksCreated metric.Int64Counter
	TasksUpdated metric.Int64Counter
	TasksDeleted metric.Int64Counter
	PlanDuration metric.Float64Histogram
}

// NewMetrics registers the Taskgrid instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/taskgrid/taskgrid")

	created, err := meter.Int64Counter("taskgrid.tasks.created",
		metric.WithDescription("Number of tasks created"))
	if err != nil {
		return nil, fmt.Errorf("tasks created counter: %w", err)
	}
	updated, err := meter.Int64Counter("taskgrid.tasks.updated",
		metric.WithDescription("Number of task updates applied"))
	if err != nil {
		return nil, fmt.Errorf("tasks updated counter: %w", err)
	}
	deleted, err := meter.Int64Counter("taskgrid.tasks.deleted",
		metric.WithDescription("Number of tasks deleted"))
	if err != nil {
		return nil, fmt.Errorf("tasks deleted counter: %w", err)
	}
	planDur, err := meter.Float64Histogram("taskgrid.plan.duration",
		metric.WithDescription("Plan decomposition duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("plan duration histogram: %w", err)
	}

	return &Metrics{
		TasksCreated: created,
		TasksUpdated: updated,
		TasksDeleted: deleted,
		PlanDuration: planDur,
	}, nil
}
