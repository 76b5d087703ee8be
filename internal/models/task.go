package models

import "time"

// TaskRecord is one per-user task, unique on (user_id, task_name).
// Cached as a field of the per-user tasks hash; the field name is the task
// name, so TaskName is omitted from the serialized value.
type TaskRecord struct {
	TaskName    string         `json:"-"`
	Status      string         `json:"status"`
	Data        map[string]any `json:"data,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
}

// TaskUpdateRequest is the PUT /tasks/:task_name payload.
type TaskUpdateRequest struct {
	Status string         `json:"status" binding:"required"`
	Data   map[string]any `json:"data,omitempty"`
}
