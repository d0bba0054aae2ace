package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskgrid/taskgrid/internal/config"
	"github.com/taskgrid/taskgrid/internal/domain"
	"github.com/taskgrid/taskgrid/internal/domain/task"
	"github.com/taskgrid/taskgrid/internal/port/messagequeue"
	"github.com/taskgrid/taskgrid/internal/port/planner"
)

func plannerConfig() config.Planner {
	return config.Planner{
		MaxSubtasks:   12,
		MaxConcurrent: 4,
		Timeout:       5 * time.Second,
	}
}

func waitForStatus(t *testing.T, svc *TaskService, id string, want task.Status) *task.Task {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.Status == want {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("task %s stuck in %q, want %q (error: %s)", id, got.Status, want, got.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlanCreatesSubtasksInOrder(t *testing.T) {
	store := &mockStore{}
	queue := &mockQueue{}
	tasks := newTaskService(store, nil, queue)
	dec := &stubDecomposer{specs: []planner.SubtaskSpec{
		{Name: "research"},
		{Name: "draft", Dependencies: []int{0}},
		{Name: "review", Dependencies: []int{1}},
	}}
	svc := NewPlannerService(tasks, dec, queue, plannerConfig(), nil)

	parent, err := svc.Plan(context.Background(), task.PlanRequest{Description: "write the whitepaper"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if parent.Status != task.StatusPendingPlanning {
		t.Fatalf("expected pending_planning, got %q", parent.Status)
	}
	if parent.Name != "write the whitepaper" {
		t.Errorf("expected description as name, got %q", parent.Name)
	}

	planned := waitForStatus(t, tasks, parent.ID, task.StatusPlanned)
	if len(planned.Subtasks) != 3 {
		t.Fatalf("expected 3 subtasks, got %d", len(planned.Subtasks))
	}

	// Subtask order must match spec order, and dependencies must resolve
	// to the prior subtask's id.
	names := []string{"research", "draft", "review"}
	for i, subID := range planned.Subtasks {
		sub, err := tasks.Get(context.Background(), subID)
		if err != nil {
			t.Fatalf("get subtask: %v", err)
		}
		if sub.Name != names[i] {
			t.Errorf("subtask %d: expected %q, got %q", i, names[i], sub.Name)
		}
		if i == 0 {
			if len(sub.Dependencies) != 0 {
				t.Errorf("first subtask should have no dependencies, got %v", sub.Dependencies)
			}
			continue
		}
		if len(sub.Dependencies) != 1 || sub.Dependencies[0] != planned.Subtasks[i-1] {
			t.Errorf("subtask %d: expected dependency on %s, got %v", i, planned.Subtasks[i-1], sub.Dependencies)
		}
	}
}

func TestPlanPublishesPlannedEvent(t *testing.T) {
	store := &mockStore{}
	queue := &mockQueue{}
	tasks := newTaskService(store, nil, queue)
	dec := &stubDecomposer{specs: []planner.SubtaskSpec{{Name: "only step"}}}
	svc := NewPlannerService(tasks, dec, queue, plannerConfig(), nil)

	parent, err := svc.Plan(context.Background(), task.PlanRequest{Description: "one thing"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	waitForStatus(t, tasks, parent.ID, task.StatusPlanned)

	found := false
	for _, s := range queue.subjects() {
		if s == messagequeue.SubjectTaskPlanned {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s event, got %v", messagequeue.SubjectTaskPlanned, queue.subjects())
	}
}

func TestPlanFailureMarksParent(t *testing.T) {
	store := &mockStore{}
	tasks := newTaskService(store, nil, nil)
	dec := &stubDecomposer{err: errors.New("model unavailable")}
	svc := NewPlannerService(tasks, dec, nil, plannerConfig(), nil)

	parent, err := svc.Plan(context.Background(), task.PlanRequest{Description: "doomed"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	failed := waitForStatus(t, tasks, parent.ID, task.StatusPlanningFailed)
	if failed.Error == "" {
		t.Error("expected failure reason recorded on parent")
	}
}

func TestPlanTimeoutMarksParentFailed(t *testing.T) {
	store := &mockStore{}
	tasks := newTaskService(store, nil, nil)
	// The decomposer blocks past the plan budget, so decomposition fails
	// with the expired plan context. The failure transition must still
	// reach the store, which rejects calls on a dead context.
	dec := &stubDecomposer{delay: time.Second}
	cfg := plannerConfig()
	cfg.Timeout = 50 * time.Millisecond
	svc := NewPlannerService(tasks, dec, nil, cfg, nil)

	parent, err := svc.Plan(context.Background(), task.PlanRequest{Description: "slow model"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	failed := waitForStatus(t, tasks, parent.ID, task.StatusPlanningFailed)
	if failed.Error == "" {
		t.Error("expected timeout reason recorded on parent")
	}
}

func TestPlanCapsSubtasks(t *testing.T) {
	store := &mockStore{}
	tasks := newTaskService(store, nil, nil)

	var specs []planner.SubtaskSpec
	for i := 0; i < 20; i++ {
		specs = append(specs, planner.SubtaskSpec{Name: "step"})
	}
	cfg := plannerConfig()
	cfg.MaxSubtasks = 5
	svc := NewPlannerService(tasks, &stubDecomposer{specs: specs}, nil, cfg, nil)

	parent, err := svc.Plan(context.Background(), task.PlanRequest{Description: "huge"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	planned := waitForStatus(t, tasks, parent.ID, task.StatusPlanned)
	if len(planned.Subtasks) != 5 {
		t.Errorf("expected 5 subtasks after cap, got %d", len(planned.Subtasks))
	}
}

func TestPlanSkipsBadDependencyIndices(t *testing.T) {
	store := &mockStore{}
	tasks := newTaskService(store, nil, nil)
	dec := &stubDecomposer{specs: []planner.SubtaskSpec{
		{Name: "a"},
		{Name: "b", Dependencies: []int{0, 1, 99, -3}}, // self, out of range
	}}
	svc := NewPlannerService(tasks, dec, nil, plannerConfig(), nil)

	parent, err := svc.Plan(context.Background(), task.PlanRequest{Description: "sloppy plan"})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	planned := waitForStatus(t, tasks, parent.ID, task.StatusPlanned)
	sub, err := tasks.Get(context.Background(), planned.Subtasks[1])
	if err != nil {
		t.Fatalf("get subtask: %v", err)
	}
	if len(sub.Dependencies) != 1 || sub.Dependencies[0] != planned.Subtasks[0] {
		t.Errorf("expected only the valid dependency kept, got %v", sub.Dependencies)
	}
}

func TestPlanEmptyDescription(t *testing.T) {
	tasks := newTaskService(&mockStore{}, nil, nil)
	svc := NewPlannerService(tasks, &stubDecomposer{}, nil, plannerConfig(), nil)

	_, err := svc.Plan(context.Background(), task.PlanRequest{Description: "  "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
