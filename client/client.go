package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/taskgrid/taskgrid/internal/resilience"
)

// Client is a typed HTTP client for the task API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBreaker attaches a circuit breaker to all outgoing calls: after
// maxFailures consecutive failures the client fails fast until
// resetTimeout elapses.
func WithBreaker(maxFailures int, resetTimeout time.Duration) Option {
	return func(c *Client) {
		c.breaker = resilience.NewBreaker(maxFailures, resetTimeout)
	}
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlanTask asks the server to decompose description into a parent task
// with subtasks. The returned parent may still be pending_planning;
// subtasks appear on later fetches.
func (c *Client) PlanTask(ctx context.Context, description string, planContext map[string]any) (*Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, &ValidationError{Field: "description", Reason: "description is required"}
	}
	body, err := json.Marshal(map[string]any{
		"description": description,
		"context":     planContext,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal plan request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/tasks/plan", body)
	if err != nil {
		return nil, err
	}
	return decodeTask(data)
}

// CreateTask creates a task. The request is validated before dispatch.
func (c *Client) CreateTask(ctx context.Context, req CreateRequest) (*Task, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/tasks", body)
	if err != nil {
		return nil, err
	}
	return decodeTask(data)
}

// GetTasks lists tasks matching the filter; a zero filter returns all.
func (c *Client) GetTasks(ctx context.Context, f Filter) ([]Task, error) {
	q := url.Values{}
	if f.ParentID != nil {
		q.Set("parent_id", *f.ParentID)
	}
	if f.Status != nil {
		q.Set("status", string(*f.Status))
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ServerError{StatusCode: http.StatusOK, Message: "malformed task list response"}
	}
	return resp.Tasks, nil
}

// GetTask fetches a single task by id.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "id is required"}
	}
	data, err := c.doRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, retagNotFound(err, id)
	}
	return decodeTask(data)
}

// UpdateTask applies a partial update and returns the stored task.
func (c *Client) UpdateTask(ctx context.Context, id string, req UpdateRequest) (*Task, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "id is required"}
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal update request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), body)
	if err != nil {
		return nil, retagNotFound(err, id)
	}
	return decodeTask(data)
}

// DeleteTask deletes a task. Deleting an already-deleted id returns
// NotFoundError.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Reason: "id is required"}
	}
	_, err := c.doRequest(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil)
	return retagNotFound(err, id)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &NetworkError{Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Err: err}
		}

		if resp.StatusCode >= 400 {
			if resp.StatusCode == http.StatusNotFound {
				return &NotFoundError{}
			}
			return &ServerError{
				StatusCode: resp.StatusCode,
				Message:    errorMessage(data),
			}
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

func decodeTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &ServerError{StatusCode: http.StatusOK, Message: "malformed task response"}
	}
	return &t, nil
}

// errorMessage extracts the {"error": ...} body, falling back to raw text.
func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// retagNotFound fills the task id into a NotFoundError produced inside
// doRequest, where the id is not in scope.
func retagNotFound(err error, id string) error {
	if err == nil {
		return nil
	}
	if nf, ok := err.(*NotFoundError); ok {
		nf.ID = id
	}
	return err
}
