// Package task defines the Task domain entity.
//
// Wire field names are camelCase (parentId, startTime, assignedTools, ...)
// because existing consumers of the task API depend on that casing exactly.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPendingPlanning Status = "pending_planning"
	StatusPlanningFailed  Status = "planning_failed"
	StatusPlanned         Status = "planned"
	StatusRunning         Status = "running"
	StatusPaused          Status = "paused"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Terminal reports whether a task in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPlanningFailed
}

// Artifact is an output attached to a task: a file, a URL, or an inline snippet.
type Artifact struct {
	Type        string `json:"type"`
	URI         string `json:"uri,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Task represents a unit of agent work, optionally decomposed into subtasks.
//
// StartTime and EndTime are unix seconds (fractional), matching what clients
// already store. CreatedAt/UpdatedAt are server bookkeeping; UpdatedAt is
// touched on every mutation.
type Task struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Status        Status         `json:"status"`
	Progress      float64        `json:"progress"`
	StartTime     float64        `json:"startTime"`
	EndTime       *float64       `json:"endTime,omitempty"`
	ParentID      *string        `json:"parentId,omitempty"`
	Subtasks      []string       `json:"subtasks"`
	Dependencies  []string       `json:"dependencies"`
	AssignedTools []string       `json:"assignedTools"`
	Artifacts     []Artifact     `json:"artifacts"`
	Metadata      map[string]any `json:"metadata"`
	Error         string         `json:"error,omitempty"`
	Result        any            `json:"result,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Status        Status         `json:"status,omitempty"`
	Progress      float64        `json:"progress,omitempty"`
	ParentID      *string        `json:"parentId,omitempty"`
	Dependencies  []string       `json:"dependencies,omitempty"`
	AssignedTools []string       `json:"assignedTools,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// UpdateRequest holds a partial update. Only non-nil fields change.
type UpdateRequest struct {
	Name          *string         `json:"name,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Status        *Status         `json:"status,omitempty"`
	Progress      *float64        `json:"progress,omitempty"`
	EndTime       *float64        `json:"endTime,omitempty"`
	Dependencies  *[]string       `json:"dependencies,omitempty"`
	AssignedTools *[]string       `json:"assignedTools,omitempty"`
	Artifacts     *[]Artifact     `json:"artifacts,omitempty"`
	Metadata      *map[string]any `json:"metadata,omitempty"`
	Error         *string         `json:"error,omitempty"`
	Result        *any            `json:"result,omitempty"`
}

// PlanRequest asks the planner to synthesize a parent task plus subtasks
// from a natural-language description.
type PlanRequest struct {
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
}

// Filter narrows a task listing. Zero value means "all tasks".
type Filter struct {
	ParentID *string
	Status   *Status
}

// Runnable reports whether every dependency of t has completed, given a
// lookup of dependency statuses. Unknown dependencies count as not completed.
func Runnable(t *Task, statusOf func(id string) (Status, bool)) bool {
	for _, dep := range t.Dependencies {
		st, ok := statusOf(dep)
		if !ok || st != StatusCompleted {
			return false
		}
	}
	return true
}

// CompletedFraction returns the share of tasks in ts that have completed.
// Empty input yields 0, never a division by zero.
func CompletedFraction(ts []Task) float64 {
	if len(ts) == 0 {
		return 0
	}
	done := 0
	for i := range ts {
		if ts[i].Status == StatusCompleted {
			done++
		}
	}
	return float64(done) / float64(len(ts))
}
