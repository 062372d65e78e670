// Package session manages unified sessions: the durable records that bind
// backend continuation tokens, workflow state, and task history together
// under one identity. The catalog is persisted as a single JSON table with
// atomic writes and an advisory file lock for cross-process safety.
package session

import "time"

// Session statuses.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// Task record statuses.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// validTransitions is the status transition table. Archived is terminal.
var validTransitions = map[string][]string{
	StatusActive:    {StatusPaused, StatusCompleted, StatusArchived},
	StatusPaused:    {StatusActive, StatusArchived},
	StatusCompleted: {StatusArchived},
	StatusArchived:  {},
}

// CanTransition reports whether the status transition table allows moving
// from one status to another.
func CanTransition(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UnifiedSession is one session record in the catalog.
type UnifiedSession struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	BackendSessions map[string]string `json:"backend_sessions"`
	WorkflowBinding *WorkflowBinding  `json:"workflow_binding,omitempty"`
	Status          string            `json:"status"`
	TaskHistory     []TaskRecord      `json:"task_history"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// WorkflowBinding links a session to a workflow level and its state
// directory.
type WorkflowBinding struct {
	StateDir string `json:"state_dir,omitempty"`
	Level    string `json:"level"`
}

// TaskRecord is one entry in a session's append-only task history.
type TaskRecord struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	AssignedBackend string    `json:"assigned_backend"`
	Status          string    `json:"status"`
	Result          string    `json:"result,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// clone returns a deep copy so callers never share mutable state with the
// catalog.
func (s *UnifiedSession) clone() *UnifiedSession {
	copied := *s

	copied.BackendSessions = make(map[string]string, len(s.BackendSessions))
	for k, v := range s.BackendSessions {
		copied.BackendSessions[k] = v
	}

	if s.WorkflowBinding != nil {
		binding := *s.WorkflowBinding
		copied.WorkflowBinding = &binding
	}

	copied.TaskHistory = make([]TaskRecord, len(s.TaskHistory))
	copy(copied.TaskHistory, s.TaskHistory)

	return &copied
}
