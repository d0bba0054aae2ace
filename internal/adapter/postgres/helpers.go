package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/taskgrid/taskgrid/internal/domain/task"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil.
// Ensures JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// marshalTaskJSON marshals the JSONB columns of a task for insertion.
func marshalTaskJSON(t *task.Task) (subtasks, deps, tools, artifacts, metadata, result []byte, err error) {
	if subtasks, err = json.Marshal(orEmpty(t.Subtasks)); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal subtasks: %w", err)
	}
	if deps, err = json.Marshal(orEmpty(t.Dependencies)); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal dependencies: %w", err)
	}
	if tools, err = json.Marshal(orEmpty(t.AssignedTools)); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal assigned_tools: %w", err)
	}
	if artifacts, err = json.Marshal(orEmpty(t.Artifacts)); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal artifacts: %w", err)
	}
	meta := t.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if metadata, err = json.Marshal(meta); err != nil {
		return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if t.Result != nil {
		if result, err = json.Marshal(t.Result); err != nil {
			return nil, nil, nil, nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return subtasks, deps, tools, artifacts, metadata, result, nil
}

// scanTask reads one task row, decoding the JSONB columns.
func scanTask(row scannable) (task.Task, error) {
	var (
		t         task.Task
		status    string
		subtasks  []byte
		deps      []byte
		tools     []byte
		artifacts []byte
		metadata  []byte
		result    []byte
	)

	err := row.Scan(&t.ID, &t.Name, &t.Description, &status, &t.Progress,
		&t.StartTime, &t.EndTime, &t.ParentID,
		&subtasks, &deps, &tools, &artifacts, &metadata, &t.Error, &result,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	t.Status = task.Status(status)

	if err := json.Unmarshal(subtasks, &t.Subtasks); err != nil {
		return t, fmt.Errorf("unmarshal subtasks: %w", err)
	}
	if err := json.Unmarshal(deps, &t.Dependencies); err != nil {
		return t, fmt.Errorf("unmarshal dependencies: %w", err)
	}
	if err := json.Unmarshal(tools, &t.AssignedTools); err != nil {
		return t, fmt.Errorf("unmarshal assigned_tools: %w", err)
	}
	if err := json.Unmarshal(artifacts, &t.Artifacts); err != nil {
		return t, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
		return t, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &t.Result); err != nil {
			return t, fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return t, nil
}
