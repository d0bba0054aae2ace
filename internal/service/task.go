package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskgrid/taskgrid/internal/adapter/otel"
	"github.com/taskgrid/taskgrid/internal/adapter/ws"
	"github.com/taskgrid/taskgrid/internal/domain"
	"github.com/taskgrid/taskgrid/internal/domain/task"
	"github.com/taskgrid/taskgrid/internal/port/cache"
	"github.com/taskgrid/taskgrid/internal/port/database"
	"github.com/taskgrid/taskgrid/internal/port/messagequeue"
)

// TaskService handles task business logic: validation, lifecycle rules,
// the read-through detail cache, and event publication.
type TaskService struct {
	store    database.Store
	cache    cache.Cache
	cacheTTL time.Duration
	queue    messagequeue.Queue
	hub      *ws.Hub
	metrics  *otel.Metrics
	now      func() time.Time // for testing
}

// NewTaskService creates a new TaskService. cache, queue, hub and metrics
// may be nil; the corresponding concerns are then skipped.
func NewTaskService(store database.Store, c cache.Cache, cacheTTL time.Duration, queue messagequeue.Queue, hub *ws.Hub, metrics *otel.Metrics) *TaskService {
	return &TaskService{
		store:    store,
		cache:    c,
		cacheTTL: cacheTTL,
		queue:    queue,
		hub:      hub,
		metrics:  metrics,
		now:      time.Now,
	}
}

// List returns tasks matching the filter. A zero filter returns everything.
func (s *TaskService) List(ctx context.Context, f task.Filter) ([]task.Task, error) {
	if f.Status != nil && !task.ValidStatus(*f.Status) {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, *f.Status)
	}
	return s.store.ListTasks(ctx, f)
}

// Get returns a task by ID, consulting the detail cache first.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, detailKey(id)); err == nil && ok {
			var t task.Task
			if err := json.Unmarshal(data, &t); err == nil {
				return &t, nil
			}
			// Corrupt entry: fall through to storage.
			_ = s.cache.Delete(ctx, detailKey(id))
		}
	}

	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheTask(ctx, t)
	return t, nil
}

// Create validates the request, persists a new task and publishes events.
// When the request names a parent, the parent's subtask list grows and its
// cached detail is invalidated.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = task.StatusPending
	}

	t := &task.Task{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		Status:        status,
		Progress:      req.Progress,
		StartTime:     unixSeconds(s.now()),
		ParentID:      req.ParentID,
		Subtasks:      []string{},
		Dependencies:  req.Dependencies,
		AssignedTools: req.AssignedTools,
		Artifacts:     []task.Artifact{},
		Metadata:      req.Metadata,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}

	stored, err := s.store.GetTask(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("reload created task: %w", err)
	}

	s.cacheTask(ctx, stored)
	if stored.ParentID != nil {
		// The parent's subtask list changed.
		s.dropCached(ctx, *stored.ParentID)
	}

	if s.metrics != nil {
		s.metrics.TasksCreated.Add(ctx, 1)
	}
	s.publishTaskEvent(ctx, messagequeue.SubjectTaskCreated, ws.EventTaskCreated, stored)
	return stored, nil
}

// Update applies a partial update. Terminal status transitions stamp endTime
// with the server clock when the caller did not supply one; a caller-supplied
// endTime must not precede the stored startTime. The returned value is the
// authoritative stored row.
func (s *TaskService) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := checkFieldStatusPairing(current, &req); err != nil {
		return nil, err
	}
	if req.EndTime != nil && *req.EndTime < current.StartTime {
		return nil, fmt.Errorf("%w: endTime must not precede startTime", domain.ErrValidation)
	}

	if req.Status != nil && req.Status.Terminal() && req.EndTime == nil {
		end := unixSeconds(s.now())
		req.EndTime = &end
	}

	t, err := s.store.UpdateTask(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.cacheTask(ctx, t)
	if t.ParentID != nil {
		// Parent aggregate views (completed fraction) depend on this row.
		s.dropCached(ctx, *t.ParentID)
	}

	if s.metrics != nil {
		s.metrics.TasksUpdated.Add(ctx, 1)
	}
	s.publishTaskEvent(ctx, messagequeue.SubjectTaskUpdated, ws.EventTaskUpdated, t)
	return t, nil
}

// Delete removes a task. Children are detached, never deleted. A second
// delete of the same id reports domain.ErrNotFound.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	// Fetch first: the deletion response carries no body, so the parent id
	// for event payloads and cache invalidation must come from here.
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}

	s.dropCached(ctx, id)
	parentID := ""
	if t.ParentID != nil {
		parentID = *t.ParentID
		s.dropCached(ctx, parentID)
	}

	if s.metrics != nil {
		s.metrics.TasksDeleted.Add(ctx, 1)
	}
	if s.queue != nil {
		payload, err := json.Marshal(messagequeue.TaskDeletedPayload{TaskID: id, ParentID: parentID})
		if err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectTaskDeleted, payload); err != nil {
				slog.Error("publish task deleted", "task_id", id, "error", err)
			}
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventTaskDeleted, ws.TaskDeletedEvent{TaskID: id, ParentID: parentID})
	}
	return nil
}

// checkFieldStatusPairing enforces that error is only stored on failure
// states and result only on completion. The effective status is the
// requested one, or the stored one when the request leaves status alone.
func checkFieldStatusPairing(current *task.Task, req *task.UpdateRequest) error {
	if req.Error == nil && req.Result == nil {
		return nil
	}

	effective := current.Status
	if req.Status != nil {
		effective = *req.Status
	}

	if req.Error != nil && *req.Error != "" &&
		effective != task.StatusFailed && effective != task.StatusPlanningFailed {
		return fmt.Errorf("%w: error may only be set on failed or planning_failed tasks", domain.ErrValidation)
	}
	if req.Result != nil && effective != task.StatusCompleted {
		return fmt.Errorf("%w: result may only be set on completed tasks", domain.ErrValidation)
	}
	return nil
}

func (s *TaskService) cacheTask(ctx context.Context, t *task.Task) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, detailKey(t.ID), data, s.cacheTTL); err != nil {
		slog.Debug("cache set failed", "task_id", t.ID, "error", err)
	}
}

func (s *TaskService) dropCached(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, detailKey(id)); err != nil {
		slog.Debug("cache delete failed", "task_id", id, "error", err)
	}
}

func (s *TaskService) publishTaskEvent(ctx context.Context, subject, wsEvent string, t *task.Task) {
	parentID := ""
	if t.ParentID != nil {
		parentID = *t.ParentID
	}

	if s.queue != nil {
		payload, err := json.Marshal(messagequeue.TaskEventPayload{
			TaskID:   t.ID,
			ParentID: parentID,
			Status:   string(t.Status),
			Progress: t.Progress,
		})
		if err == nil {
			if err := s.queue.Publish(ctx, subject, payload); err != nil {
				// The task is saved; event consumers catch up on the next poll.
				slog.Error("publish task event", "subject", subject, "task_id", t.ID, "error", err)
			}
		}
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, wsEvent, ws.TaskEvent{
			TaskID:   t.ID,
			ParentID: parentID,
			Status:   string(t.Status),
			Progress: t.Progress,
		})
	}
}

func detailKey(id string) string { return "task:" + id }

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
