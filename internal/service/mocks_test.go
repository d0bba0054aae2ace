package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/taskgrid/taskgrid/internal/domain"
	"github.com/taskgrid/taskgrid/internal/domain/task"
	"github.com/taskgrid/taskgrid/internal/port/cache"
	"github.com/taskgrid/taskgrid/internal/port/database"
	"github.com/taskgrid/taskgrid/internal/port/messagequeue"
	"github.com/taskgrid/taskgrid/internal/port/planner"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ database.Store     = (*mockStore)(nil)
	_ messagequeue.Queue = (*mockQueue)(nil)
	_ cache.Cache        = (*memCache)(nil)
	_ planner.Decomposer = (*stubDecomposer)(nil)
)

type mockStore struct {
	mu    sync.Mutex
	tasks []task.Task

	createErr error
	updateErr error
}

func (m *mockStore) ListTasks(_ context.Context, f task.Filter) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.Task
	for _, t := range m.tasks {
		if f.ParentID != nil {
			if t.ParentID == nil || *t.ParentID != *f.ParentID {
				continue
			}
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockStore) GetTask(ctx context.Context, id string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) CreateTask(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if t.ParentID != nil {
		found := false
		for i := range m.tasks {
			if m.tasks[i].ID == *t.ParentID {
				m.tasks[i].Subtasks = append(m.tasks[i].Subtasks, t.ID)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("parent %s: %w", *t.ParentID, domain.ErrNotFound)
		}
	}
	m.tasks = append(m.tasks, *t)
	return nil
}

func (m *mockStore) UpdateTask(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	for i := range m.tasks {
		if m.tasks[i].ID != id {
			continue
		}
		t := &m.tasks[i]
		if req.Name != nil {
			t.Name = *req.Name
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		if req.Progress != nil {
			t.Progress = *req.Progress
		}
		if req.EndTime != nil {
			t.EndTime = req.EndTime
		}
		if req.Dependencies != nil {
			t.Dependencies = *req.Dependencies
		}
		if req.AssignedTools != nil {
			t.AssignedTools = *req.AssignedTools
		}
		if req.Artifacts != nil {
			t.Artifacts = *req.Artifacts
		}
		if req.Metadata != nil {
			t.Metadata = *req.Metadata
		}
		if req.Error != nil {
			t.Error = *req.Error
		}
		if req.Result != nil {
			t.Result = *req.Result
		}
		t.UpdatedAt = time.Now().UTC()
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

func (m *mockStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := -1
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	for i := range m.tasks {
		if m.tasks[i].ParentID != nil && *m.tasks[i].ParentID == id {
			m.tasks[i].ParentID = nil
		}
		for j, sub := range m.tasks[i].Subtasks {
			if sub == id {
				m.tasks[i].Subtasks = append(m.tasks[i].Subtasks[:j], m.tasks[i].Subtasks[j+1:]...)
				break
			}
		}
	}
	m.tasks = append(m.tasks[:idx], m.tasks[idx+1:]...)
	return nil
}

type published struct {
	subject string
	data    []byte
}

type mockQueue struct {
	mu        sync.Mutex
	published []published
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{subject, data})
	return nil
}

func (m *mockQueue) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	for i, p := range m.published {
		out[i] = p.subject
	}
	return out
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

// memCache is a map-backed cache.Cache with no eviction.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type stubDecomposer struct {
	specs []planner.SubtaskSpec
	err   error
	delay time.Duration
}

func (s *stubDecomposer) Decompose(ctx context.Context, _ string, _ map[string]any) ([]planner.SubtaskSpec, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.specs, s.err
}
