package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/taskgrid/taskgrid/client"
)

func sampleTask(id string) client.Task {
	return client.Task{
		ID:        id,
		Name:      "sample",
		Status:    client.StatusPending,
		StartTime: 1700000000,
		Subtasks:  []string{},
		Artifacts: []client.Artifact{},
	}
}

func writeTask(w http.ResponseWriter, status int, t client.Task) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(t)
}

func TestPlanTaskEmptyDescriptionNoRequest(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.PlanTask(context.Background(), "   ", nil)

	var ve *client.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request, got %d", calls.Load())
	}
}

func TestCreateTaskValidatesBeforeDispatch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := client.New(srv.URL)

	_, err := c.CreateTask(context.Background(), client.CreateRequest{})
	var ve *client.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing name, got %v", err)
	}

	_, err = c.CreateTask(context.Background(), client.CreateRequest{Name: "x", Progress: 1.5})
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for progress out of range, got %v", err)
	}

	if calls.Load() != 0 {
		t.Fatalf("expected no requests, got %d", calls.Load())
	}
}

func TestUpdateTaskRejectsBadProgress(t *testing.T) {
	c := client.New("http://127.0.0.1:0")
	p := -0.1
	_, err := c.UpdateTask(context.Background(), "t1", client.UpdateRequest{Progress: &p})
	var ve *client.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"task not found"}`))
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.GetTask(context.Background(), "missing")

	var nf *client.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.ID != "missing" {
		t.Errorf("expected id in error, got %q", nf.ID)
	}
}

func TestServerErrorCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database unavailable"}`))
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.GetTask(context.Background(), "t1")

	var se *client.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", se.StatusCode)
	}
	if se.Message != "database unavailable" {
		t.Errorf("expected message extracted, got %q", se.Message)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := client.New(srv.URL)
	_, err := c.GetTask(context.Background(), "t1")

	var ne *client.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestGetTasksSendsFilterParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tasks":[{"id":"t1","name":"a","status":"running"}]}`))
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	parentID := "p1"
	status := client.StatusRunning
	tasks, err := c.GetTasks(context.Background(), client.Filter{ParentID: &parentID, Status: &status})
	if err != nil {
		t.Fatalf("get tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if gotQuery != "parent_id=p1&status=running" {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestUpdateTaskSendsOnlyProvidedFields(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeTask(w, http.StatusOK, sampleTask("t1"))
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	st := client.StatusRunning
	if _, err := c.UpdateTask(context.Background(), "t1", client.UpdateRequest{Status: &st}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(gotBody) != 1 {
		t.Fatalf("expected only status in body, got %v", gotBody)
	}
	if gotBody["status"] != "running" {
		t.Errorf("unexpected status %v", gotBody["status"])
	}
}

func TestDeleteTaskSecondCallNotFound(t *testing.T) {
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deleted {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"task not found"}`))
			return
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	if err := c.DeleteTask(context.Background(), "t1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}

	err := c.DeleteTask(context.Background(), "t1")
	var nf *client.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError on second delete, got %v", err)
	}
}

func TestCompletedFraction(t *testing.T) {
	if got := client.CompletedFraction(nil); got != 0 {
		t.Errorf("expected 0 for empty list, got %v", got)
	}
	tasks := []client.Task{
		{Status: client.StatusCompleted},
		{Status: client.StatusRunning},
		{Status: client.StatusCompleted},
		{Status: client.StatusFailed},
	}
	if got := client.CompletedFraction(tasks); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}
