package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskgrid/taskgrid/internal/domain"
	"github.com/taskgrid/taskgrid/internal/domain/task"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const taskColumns = `id, name, description, status, progress, start_time, end_time, parent_id,
	subtasks, dependencies, assigned_tools, artifacts, metadata, error, result, created_at, updated_at`

func (s *Store) ListTasks(ctx context.Context, f task.Filter) ([]task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var conds []string
	var args []any

	if f.ParentID != nil {
		args = append(args, *f.ParentID)
		conds = append(conds, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	subtasks, deps, tools, artifacts, metadata, result, err := marshalTaskJSON(t)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create task: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO tasks (id, name, description, status, progress, start_time, end_time, parent_id,
		                    subtasks, dependencies, assigned_tools, artifacts, metadata, error, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.Name, t.Description, string(t.Status), t.Progress, t.StartTime, t.EndTime, t.ParentID,
		subtasks, deps, tools, artifacts, metadata, t.Error, result)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	// Record the new subtask in the parent's ordered list.
	if t.ParentID != nil {
		tag, err := tx.Exec(ctx,
			`UPDATE tasks SET subtasks = subtasks || to_jsonb($2::text) WHERE id = $1`,
			*t.ParentID, t.ID)
		if err != nil {
			return fmt.Errorf("append subtask to parent %s: %w", *t.ParentID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("parent task %s: %w", *t.ParentID, domain.ErrNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create task: %w", err)
	}
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	sets := []string{}
	args := []any{id}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Status != nil {
		add("status", string(*req.Status))
	}
	if req.Progress != nil {
		add("progress", *req.Progress)
	}
	if req.EndTime != nil {
		add("end_time", *req.EndTime)
	}
	if req.Error != nil {
		add("error", *req.Error)
	}
	if req.Dependencies != nil {
		data, err := json.Marshal(orEmpty(*req.Dependencies))
		if err != nil {
			return nil, fmt.Errorf("marshal dependencies: %w", err)
		}
		add("dependencies", data)
	}
	if req.AssignedTools != nil {
		data, err := json.Marshal(orEmpty(*req.AssignedTools))
		if err != nil {
			return nil, fmt.Errorf("marshal assigned_tools: %w", err)
		}
		add("assigned_tools", data)
	}
	if req.Artifacts != nil {
		data, err := json.Marshal(orEmpty(*req.Artifacts))
		if err != nil {
			return nil, fmt.Errorf("marshal artifacts: %w", err)
		}
		add("artifacts", data)
	}
	if req.Metadata != nil {
		data, err := json.Marshal(*req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		add("metadata", data)
	}
	if req.Result != nil {
		data, err := json.Marshal(*req.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		add("result", data)
	}

	if len(sets) == 0 {
		// Nothing to change; return the current row.
		return s.GetTask(ctx, id)
	}

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + taskColumns

	row := s.pool.QueryRow(ctx, query, args...)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete task: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Prune the id from its parent's subtask list before the row goes away.
	_, err = tx.Exec(ctx,
		`UPDATE tasks SET subtasks = subtasks - $2::text
		 WHERE id = (SELECT parent_id FROM tasks WHERE id = $1)`,
		id, id)
	if err != nil {
		return fmt.Errorf("prune subtask from parent: %w", err)
	}

	// Children are detached by ON DELETE SET NULL, never cascade-deleted.
	tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete task: %w", err)
	}
	return nil
}
