package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// EntryState is the lifecycle of a cached entry.
type EntryState int

const (
	// StateAbsent means nothing is cached under the key.
	StateAbsent EntryState = iota
	// StateLoading means a fetch is in flight and no usable value exists yet.
	StateLoading
	// StateFresh means the cached value reflects the latest known server state.
	StateFresh
	// StateStale means the cached value is usable but due for a refetch.
	StateStale
)

// Cache is a polling query cache over the task API. It is explicitly
// constructed and carries no package-level state. Reads are read-through:
// fresh entries are served locally, everything else triggers a fetch, with
// at most one in-flight request per key. Racing responses resolve
// last-write-wins by arrival; the server corrects any stale outcome on the
// next poll tick.
type Cache struct {
	api          *Client
	pollInterval time.Duration

	group singleflight.Group

	mu      sync.Mutex
	details map[string]*detailEntry
	lists   map[string]*listEntry
}

type detailEntry struct {
	task  *Task
	state EntryState
	err   error
}

type listEntry struct {
	filter Filter
	tasks  []Task
	state  EntryState
	err    error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithPollInterval sets the default interval used by Watch and WatchList
// when their options leave it zero.
func WithPollInterval(d time.Duration) CacheOption {
	return func(c *Cache) { c.pollInterval = d }
}

// NewCache creates a Cache backed by api.
func NewCache(api *Client, opts ...CacheOption) *Cache {
	c := &Cache{
		api:          api,
		pollInterval: DefaultPollInterval,
		details:      make(map[string]*detailEntry),
		lists:        make(map[string]*listEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Task returns the task for id, serving a fresh cached copy when one
// exists and fetching otherwise. Concurrent calls for the same id share
// one request. On fetch failure the last-known-good value is returned
// alongside the error.
func (c *Cache) Task(ctx context.Context, id string) (*Task, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "id is required"}
	}

	c.mu.Lock()
	if e, ok := c.details[id]; ok && e.state == StateFresh {
		t := *e.task
		c.mu.Unlock()
		return &t, nil
	}
	if e, ok := c.details[id]; ok && e.task != nil {
		e.state = StateLoading
	} else {
		c.details[id] = &detailEntry{state: StateLoading}
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("detail:"+id, func() (any, error) {
		return c.api.GetTask(ctx, id)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			// The row is gone; a stale copy must not outlive it.
			delete(c.details, id)
			return nil, err
		}
		e := c.details[id]
		if e == nil || e.task == nil {
			delete(c.details, id)
			return nil, err
		}
		e.state = StateStale
		e.err = err
		t := *e.task
		return &t, err
	}

	t := v.(*Task)
	c.details[id] = &detailEntry{task: t, state: StateFresh}
	cp := *t
	return &cp, nil
}

// Tasks returns the tasks matching f, read-through like Task.
func (c *Cache) Tasks(ctx context.Context, f Filter) ([]Task, error) {
	key := f.signature()

	c.mu.Lock()
	if e, ok := c.lists[key]; ok && e.state == StateFresh {
		out := append([]Task(nil), e.tasks...)
		c.mu.Unlock()
		return out, nil
	}
	if e, ok := c.lists[key]; ok && e.tasks != nil {
		e.state = StateLoading
	} else {
		c.lists[key] = &listEntry{filter: f, state: StateLoading}
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("list:"+key, func() (any, error) {
		return c.api.GetTasks(ctx, f)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		e := c.lists[key]
		if e == nil || e.tasks == nil {
			delete(c.lists, key)
			return nil, err
		}
		e.state = StateStale
		e.err = err
		return append([]Task(nil), e.tasks...), err
	}

	tasks := v.([]Task)
	if tasks == nil {
		tasks = []Task{}
	}
	c.lists[key] = &listEntry{filter: f, tasks: tasks, state: StateFresh}
	return append([]Task(nil), tasks...), nil
}

// Create creates a task and reconciles the cache: the returned value seeds
// detail(id), the all-tasks list goes stale, and when the new task has a
// parent both the parent's filtered lists and its detail go stale.
func (c *Cache) Create(ctx context.Context, req CreateRequest) (*Task, error) {
	t, err := c.api.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}
	c.reconcileCreated(t)
	return t, nil
}

// Plan plans a task and reconciles the cache the same way Create does for
// the synthesized parent. Subtasks show up on later list fetches; the
// server may still be generating them.
func (c *Cache) Plan(ctx context.Context, description string, planContext map[string]any) (*Task, error) {
	t, err := c.api.PlanTask(ctx, description, planContext)
	if err != nil {
		return nil, err
	}
	c.reconcileCreated(t)
	return t, nil
}

func (c *Cache) reconcileCreated(t *Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *t
	c.details[t.ID] = &detailEntry{task: &cp, state: StateFresh}
	c.invalidateAllListLocked()
	if t.ParentID != nil {
		c.invalidateParentListsLocked(*t.ParentID)
		c.invalidateDetailLocked(*t.ParentID)
	}
}

// Update applies a partial update. The server response overwrites
// detail(id) wholesale; the all-tasks list and the parent's filtered
// lists go stale.
func (c *Cache) Update(ctx context.Context, id string, req UpdateRequest) (*Task, error) {
	t, err := c.api.UpdateTask(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.reconcileUpdated(t)
	return t, nil
}

// UpdateOptimistic is Update with a two-phase local write: the request is
// merged into the cached detail before dispatch, committed with the server
// value on success, and rolled back to the pre-mutation snapshot on
// failure. Failed mutations leave no optimistic residue.
func (c *Cache) UpdateOptimistic(ctx context.Context, id string, req UpdateRequest) (*Task, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	snapshot := c.snapshotDetailLocked(id)
	if e, ok := c.details[id]; ok && e.task != nil {
		// The cached row knows the start time; reject an impossible end
		// time before it ever leaves the process.
		if req.EndTime != nil && *req.EndTime < e.task.StartTime {
			c.mu.Unlock()
			return nil, &ValidationError{Field: "endTime", Reason: "must not precede startTime"}
		}
		merged := *e.task
		applyUpdate(&merged, req)
		c.details[id] = &detailEntry{task: &merged, state: StateFresh}
	}
	c.mu.Unlock()

	t, err := c.api.UpdateTask(ctx, id, req)
	if err != nil {
		c.mu.Lock()
		c.restoreDetailLocked(id, snapshot)
		c.mu.Unlock()
		return nil, err
	}

	c.reconcileUpdated(t)
	return t, nil
}

func (c *Cache) reconcileUpdated(t *Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *t
	c.details[t.ID] = &detailEntry{task: &cp, state: StateFresh}
	c.invalidateAllListLocked()
	if t.ParentID != nil {
		c.invalidateParentListsLocked(*t.ParentID)
	}
}

// Delete deletes a task and removes detail(id) entirely. The delete
// response has no body, so the parent's lists can only be invalidated when
// the caller supplies parentID; pass "" when unknown.
func (c *Cache) Delete(ctx context.Context, id, parentID string) error {
	if err := c.api.DeleteTask(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.details, id)
	c.invalidateAllListLocked()
	if parentID != "" {
		c.invalidateParentListsLocked(parentID)
		c.invalidateDetailLocked(parentID)
	}
	return nil
}

// Invalidate marks detail(id) stale; the next read refetches.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateDetailLocked(id)
}

// InvalidateList marks the list for f stale.
func (c *Cache) InvalidateList(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.lists[f.signature()]; ok && e.state == StateFresh {
		e.state = StateStale
	}
}

// Peek returns the cached task and entry state without any network
// activity.
func (c *Cache) Peek(id string) (*Task, EntryState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.details[id]
	if !ok {
		return nil, StateAbsent
	}
	if e.task == nil {
		return nil, e.state
	}
	t := *e.task
	return &t, e.state
}

// PeekList returns the cached list for f and its state without any
// network activity.
func (c *Cache) PeekList(f Filter) ([]Task, EntryState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lists[f.signature()]
	if !ok {
		return nil, StateAbsent
	}
	if e.tasks == nil {
		return nil, e.state
	}
	return append([]Task(nil), e.tasks...), e.state
}

// SubtaskCompletedFraction fetches the live subtask list of parentID and
// returns its completed fraction. The value is recomputed per call, never
// cached.
func (c *Cache) SubtaskCompletedFraction(ctx context.Context, parentID string) (float64, error) {
	subtasks, err := c.Tasks(ctx, Filter{ParentID: &parentID})
	if err != nil {
		return 0, err
	}
	return CompletedFraction(subtasks), nil
}

func (c *Cache) invalidateDetailLocked(id string) {
	if e, ok := c.details[id]; ok && e.state == StateFresh {
		e.state = StateStale
	}
}

func (c *Cache) invalidateAllListLocked() {
	if e, ok := c.lists["all"]; ok && e.state == StateFresh {
		e.state = StateStale
	}
}

// invalidateParentListsLocked marks stale every cached list filtered on
// parentID, regardless of any additional status filter.
func (c *Cache) invalidateParentListsLocked(parentID string) {
	for _, e := range c.lists {
		if e.filter.ParentID != nil && *e.filter.ParentID == parentID && e.state == StateFresh {
			e.state = StateStale
		}
	}
}

// snapshotDetailLocked captures the pre-mutation entry; nil means absent.
func (c *Cache) snapshotDetailLocked(id string) *detailEntry {
	e, ok := c.details[id]
	if !ok {
		return nil
	}
	cp := *e
	if e.task != nil {
		t := *e.task
		cp.task = &t
	}
	return &cp
}

func (c *Cache) restoreDetailLocked(id string, snapshot *detailEntry) {
	if snapshot == nil {
		delete(c.details, id)
		return
	}
	c.details[id] = snapshot
}

// applyUpdate merges the non-nil request fields into t, mirroring the
// server's partial-update semantics.
func applyUpdate(t *Task, req UpdateRequest) {
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
}
