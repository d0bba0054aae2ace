package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskgrid/taskgrid/internal/adapter/otel"
	"github.com/taskgrid/taskgrid/internal/config"
	"github.com/taskgrid/taskgrid/internal/domain/task"
	"github.com/taskgrid/taskgrid/internal/port/messagequeue"
	"github.com/taskgrid/taskgrid/internal/port/planner"
)

// PlannerService decomposes a natural-language description into a parent
// task plus subtasks. The parent is returned immediately with status
// pending_planning; decomposition runs in the background and flips it to
// planned (or planning_failed).
type PlannerService struct {
	tasks      *TaskService
	decomposer planner.Decomposer
	queue      messagequeue.Queue
	cfg        config.Planner
	metrics    *otel.Metrics
}

// NewPlannerService creates a PlannerService. queue and metrics may be nil.
func NewPlannerService(tasks *TaskService, d planner.Decomposer, queue messagequeue.Queue, cfg config.Planner, metrics *otel.Metrics) *PlannerService {
	return &PlannerService{
		tasks:      tasks,
		decomposer: d,
		queue:      queue,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// Plan creates the parent task and kicks off asynchronous decomposition.
// The returned task is partially populated: subtasks arrive later and are
// observed through subsequent list fetches.
func (s *PlannerService) Plan(ctx context.Context, req task.PlanRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parent, err := s.tasks.Create(ctx, task.CreateRequest{
		Name:        req.Description,
		Description: req.Description,
		Status:      task.StatusPendingPlanning,
		Metadata:    req.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("create plan parent: %w", err)
	}

	// Decomposition outlives the request; detach from the caller's context.
	go s.decompose(parent.ID, req)

	return parent, nil
}

func (s *PlannerService) decompose(parentID string, req task.PlanRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	ctx, span := otel.StartPlanSpan(ctx, parentID)
	defer span.End()

	start := time.Now()
	err := s.decomposeInto(ctx, parentID, req)
	if s.metrics != nil {
		s.metrics.PlanDuration.Record(ctx, time.Since(start).Seconds())
	}

	if err != nil {
		slog.Error("plan decomposition failed", "parent_id", parentID, "error", err)
		// The failure may be the plan context expiring; the transition to
		// planning_failed must still land, so it gets its own deadline.
		failCtx, failCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer failCancel()
		s.failParent(failCtx, parentID, err)
		return
	}

	planned := task.StatusPlanned
	if _, err := s.tasks.Update(ctx, parentID, task.UpdateRequest{Status: &planned}); err != nil {
		slog.Error("mark parent planned", "parent_id", parentID, "error", err)
		return
	}

	if s.queue != nil {
		payload, merr := json.Marshal(messagequeue.TaskEventPayload{
			TaskID: parentID,
			Status: string(task.StatusPlanned),
		})
		if merr == nil {
			if perr := s.queue.Publish(ctx, messagequeue.SubjectTaskPlanned, payload); perr != nil {
				slog.Error("publish task planned", "parent_id", parentID, "error", perr)
			}
		}
	}
}

// decomposeInto creates the subtasks for parentID. Creation is sequential so
// the parent's subtask list keeps plan order; dependency wiring (index → id)
// happens in a bounded second pass.
func (s *PlannerService) decomposeInto(ctx context.Context, parentID string, req task.PlanRequest) error {
	specs, err := s.decomposer.Decompose(ctx, req.Description, req.Context)
	if err != nil {
		return fmt.Errorf("decompose: %w", err)
	}
	if len(specs) > s.cfg.MaxSubtasks {
		specs = specs[:s.cfg.MaxSubtasks]
	}

	ids := make([]string, len(specs))
	for i, spec := range specs {
		sub, err := s.tasks.Create(ctx, task.CreateRequest{
			Name:          spec.Name,
			Description:   spec.Description,
			ParentID:      &parentID,
			AssignedTools: spec.AssignedTools,
		})
		if err != nil {
			return fmt.Errorf("create subtask %d: %w", i, err)
		}
		ids[i] = sub.ID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)

	for i, spec := range specs {
		if len(spec.Dependencies) == 0 {
			continue
		}
		deps := make([]string, 0, len(spec.Dependencies))
		for _, idx := range spec.Dependencies {
			if idx < 0 || idx >= len(ids) || idx == i {
				continue // decomposer produced a bad index; skip rather than abort
			}
			deps = append(deps, ids[idx])
		}
		if len(deps) == 0 {
			continue
		}

		id := ids[i]
		g.Go(func() error {
			_, err := s.tasks.Update(gctx, id, task.UpdateRequest{Dependencies: &deps})
			return err
		})
	}

	return g.Wait()
}

func (s *PlannerService) failParent(ctx context.Context, parentID string, cause error) {
	failed := task.StatusPlanningFailed
	msg := cause.Error()
	if _, err := s.tasks.Update(ctx, parentID, task.UpdateRequest{Status: &failed, Error: &msg}); err != nil {
		slog.Error("mark parent planning_failed", "parent_id", parentID, "error", err)
	}
}
