package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"
	EventTaskPlanned = "task.planned"
)

// TaskEvent is broadcast whenever a task is created, updated or planned.
type TaskEvent struct {
	TaskID   string  `json:"taskId"`
	ParentID string  `json:"parentId,omitempty"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

// TaskDeletedEvent is broadcast when a task is deleted.
type TaskDeletedEvent struct {
	TaskID   string `json:"taskId"`
	ParentID string `json:"parentId,omitempty"`
}

// BroadcastEvent marshals a typed event and broadcasts it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
