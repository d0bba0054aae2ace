// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/taskgrid/taskgrid/internal/domain/task"
)

// Store is the port interface for task persistence.
type Store interface {
	// ListTasks returns tasks matching the filter, newest first.
	// A zero filter returns all tasks.
	ListTasks(ctx context.Context, f task.Filter) ([]task.Task, error)

	// GetTask returns a task by ID, or domain.ErrNotFound.
	GetTask(ctx context.Context, id string) (*task.Task, error)

	// CreateTask inserts the task as given (ID and timestamps already set).
	// When the task has a parent, the parent's subtask list is extended in
	// the same transaction.
	CreateTask(ctx context.Context, t *task.Task) error

	// UpdateTask applies a partial update and returns the stored row.
	UpdateTask(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error)

	// DeleteTask removes a task. Children are detached (parentId cleared),
	// never cascade-deleted, and the task's id is pruned from its parent's
	// subtask list. Returns domain.ErrNotFound for an unknown id.
	DeleteTask(ctx context.Context, id string) error
}
