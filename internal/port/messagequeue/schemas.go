package messagequeue

// TaskEventPayload is the schema for tasks.created, tasks.updated and
// tasks.planned messages.
type TaskEventPayload struct {
	TaskID   string  `json:"task_id"`
	ParentID string  `json:"parent_id,omitempty"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// TaskDeletedPayload is the schema for tasks.deleted messages.
// ParentID is included when known so consumers can refresh parent views.
type TaskDeletedPayload struct {
	TaskID   string `json:"task_id"`
	ParentID string `json:"parent_id,omitempty"`
}
