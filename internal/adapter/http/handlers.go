package http

import (
	"net/http"

	"github.com/taskgrid/taskgrid/internal/domain/task"
	"github.com/taskgrid/taskgrid/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Tasks   *service.TaskService
	Planner *service.PlannerService
}

// listTasksResponse is the envelope returned by GET /tasks.
type listTasksResponse struct {
	Tasks []task.Task `json:"tasks"`
}

// PlanTask handles POST /api/v1/tasks/plan.
func (h *Handlers) PlanTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.PlanRequest](w, r)
	if !ok {
		return
	}
	parent, err := h.Planner.Plan(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "plan failed")
		return
	}
	writeJSON(w, http.StatusCreated, parent)
}

// CreateTask handles POST /api/v1/tasks.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "task creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListTasks handles GET /api/v1/tasks with optional parent_id and status filters.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	var f task.Filter
	q := r.URL.Query()
	if q.Has("parent_id") {
		parentID := q.Get("parent_id")
		f.ParentID = &parentID
	}
	if q.Has("status") {
		st := task.Status(q.Get("status"))
		f.Status = &st
	}

	tasks, err := h.Tasks.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "listing tasks failed")
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, listTasksResponse{Tasks: tasks})
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTask handles PUT /api/v1/tasks/{id} with a partial update body.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.UpdateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
