package api

import "github.com/relaycore/relaycore/internal/domain"

// DispatchRequest is the body of POST /internal/dispatch.
type DispatchRequest struct {
	Source        string         `json:"source"`
	Type          string         `json:"type"`
	Payload       map[string]any `json:"payload"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// DispatchResponse carries the normalized event id back to the caller.
type DispatchResponse struct {
	ID string `json:"id"`
}

// ReloadRequest is the body of POST /internal/reload.
type ReloadRequest struct {
	Scopes []string `json:"scopes"`
}

type ReloadResponse struct {
	Scopes []string `json:"scopes"`
}

// CreateTaskRequest is the body of POST /tasks. Exactly one of
// execute_at or cron must be set; timezone only applies with cron.
type CreateTaskRequest struct {
	ExecuteAt string         `json:"execute_at,omitempty"`
	Cron      string         `json:"cron,omitempty"`
	Timezone  string         `json:"timezone,omitempty"`
	Intent    string         `json:"intent"`
	Context   map[string]any `json:"context,omitempty"`
}

type TaskResponse struct {
	ID string `json:"id"`
}

type ListTasksResponse struct {
	Tasks []domain.ScheduledTask `json:"tasks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
