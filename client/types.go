// Package client is the Go SDK for the Taskgrid API: a typed REST client
// plus a polling cache that keeps task state approximately fresh and
// exactly fresh immediately after local mutations.
package client

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
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

// Terminal reports whether the status is final: no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPlanningFailed
}

var validStatuses = map[Status]bool{
	StatusPending:         true,
	StatusPendingPlanning: true,
	StatusPlanningFailed:  true,
	StatusPlanned:         true,
	StatusRunning:         true,
	StatusPaused:          true,
	StatusCompleted:       true,
	StatusFailed:          true,
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool { return validStatuses[s] }

// Artifact is an output attached to a task.
type Artifact struct {
	Type        string `json:"type"`
	URI         string `json:"uri,omitempty"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Task mirrors the server's task resource. Field names follow the wire
// contract: camelCase, startTime/endTime as unix seconds.
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
	Dependencies  []string       `json:"dependencies,omitempty"`
	AssignedTools []string       `json:"assignedTools,omitempty"`
	Artifacts     []Artifact     `json:"artifacts"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Error         string         `json:"error,omitempty"`
	Result        any            `json:"result,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// CreateRequest is the payload for creating a task.
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

// UpdateRequest is a partial update; nil fields are left unchanged.
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

// Filter narrows list fetches. The zero value matches all tasks.
type Filter struct {
	ParentID *string
	Status   *Status
}

// signature is the canonical cache key for a filter. The zero filter maps
// to the distinct "all" key.
func (f Filter) signature() string {
	if f.ParentID == nil && f.Status == nil {
		return "all"
	}
	parts := make([]string, 0, 2)
	if f.ParentID != nil {
		parts = append(parts, "parent_id="+*f.ParentID)
	}
	if f.Status != nil {
		parts = append(parts, "status="+string(*f.Status))
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// CompletedFraction returns the share of tasks with status completed,
// and 0 for an empty slice.
func CompletedFraction(tasks []Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for i := range tasks {
		if tasks[i].Status == StatusCompleted {
			done++
		}
	}
	return float64(done) / float64(len(tasks))
}

func (r *CreateRequest) validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	if r.Status != "" && !ValidStatus(r.Status) {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status %q", r.Status)}
	}
	if r.Progress < 0 || r.Progress > 1 {
		return &ValidationError{Field: "progress", Reason: "progress must be between 0.0 and 1.0"}
	}
	return nil
}

func (r *UpdateRequest) validate() error {
	if r.Name != nil && *r.Name == "" {
		return &ValidationError{Field: "name", Reason: "name must not be empty"}
	}
	if r.Status != nil && !ValidStatus(*r.Status) {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status %q", *r.Status)}
	}
	if r.Progress != nil && (*r.Progress < 0 || *r.Progress > 1) {
		return &ValidationError{Field: "progress", Reason: "progress must be between 0.0 and 1.0"}
	}
	return nil
}
