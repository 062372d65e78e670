// Package event defines event types for decoupling components in maw.
// The orchestration core publishes these; consumers such as the CLI and the
// dashboard forwarder subscribe without direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.created", "workflow.completed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionCreatedEvent is emitted when a unified session is created.
type SessionCreatedEvent struct {
	baseEvent
	SessionID string // Unique identifier for the session
	Name      string // Human-readable session name
	Level     string // Workflow level the session is bound to ("lite" if none)
}

// NewSessionCreatedEvent creates a SessionCreatedEvent.
func NewSessionCreatedEvent(sessionID, name, level string) SessionCreatedEvent {
	return SessionCreatedEvent{
		baseEvent: newBaseEvent("session.created"),
		SessionID: sessionID,
		Name:      name,
		Level:     level,
	}
}

// SessionStatusEvent is emitted when a session's status changes.
type SessionStatusEvent struct {
	baseEvent
	SessionID      string // Session whose status changed
	PreviousStatus string // Status before the change
	CurrentStatus  string // Status after the change
}

// NewSessionStatusEvent creates a SessionStatusEvent.
func NewSessionStatusEvent(sessionID, previous, current string) SessionStatusEvent {
	return SessionStatusEvent{
		baseEvent:      newBaseEvent("session.status_changed"),
		SessionID:      sessionID,
		PreviousStatus: previous,
		CurrentStatus:  current,
	}
}

// SessionArchivedEvent is emitted when a session is archived.
type SessionArchivedEvent struct {
	baseEvent
	SessionID string // Session that was archived
}

// NewSessionArchivedEvent creates a SessionArchivedEvent.
func NewSessionArchivedEvent(sessionID string) SessionArchivedEvent {
	return SessionArchivedEvent{
		baseEvent: newBaseEvent("session.archived"),
		SessionID: sessionID,
	}
}

// -----------------------------------------------------------------------------
// Workflow Events
// -----------------------------------------------------------------------------

// WorkflowStartedEvent is emitted when the engine begins executing a workflow.
type WorkflowStartedEvent struct {
	baseEvent
	SessionID string // Session the workflow executes against
	Workflow  string // Workflow definition name
	Phases    int    // Number of declared phases
}

// NewWorkflowStartedEvent creates a WorkflowStartedEvent.
func NewWorkflowStartedEvent(sessionID, workflow string, phases int) WorkflowStartedEvent {
	return WorkflowStartedEvent{
		baseEvent: newBaseEvent("workflow.started"),
		SessionID: sessionID,
		Workflow:  workflow,
		Phases:    phases,
	}
}

// PhaseStartedEvent is emitted when a phase dispatch begins.
type PhaseStartedEvent struct {
	baseEvent
	SessionID string // Session the phase belongs to
	PhaseID   string // Phase identifier from the definition
	PhaseType string // planning, execution, delegation, or review
	Backend   string // Backend the phase was routed to
}

// NewPhaseStartedEvent creates a PhaseStartedEvent.
func NewPhaseStartedEvent(sessionID, phaseID, phaseType, backend string) PhaseStartedEvent {
	return PhaseStartedEvent{
		baseEvent: newBaseEvent("workflow.phase_started"),
		SessionID: sessionID,
		PhaseID:   phaseID,
		PhaseType: phaseType,
		Backend:   backend,
	}
}

// PhaseCompletedEvent is emitted when a phase dispatch finishes.
type PhaseCompletedEvent struct {
	baseEvent
	SessionID string // Session the phase belongs to
	PhaseID   string // Phase identifier from the definition
	Success   bool   // Whether the adapter call succeeded
	Error     string // Error message when Success is false
}

// NewPhaseCompletedEvent creates a PhaseCompletedEvent.
func NewPhaseCompletedEvent(sessionID, phaseID string, success bool, errMsg string) PhaseCompletedEvent {
	return PhaseCompletedEvent{
		baseEvent: newBaseEvent("workflow.phase_completed"),
		SessionID: sessionID,
		PhaseID:   phaseID,
		Success:   success,
		Error:     errMsg,
	}
}

// WorkflowCompletedEvent is emitted when an execute call returns.
type WorkflowCompletedEvent struct {
	baseEvent
	SessionID string // Session the workflow executed against
	Workflow  string // Workflow definition name
	Success   bool   // Overall workflow outcome
	Tasks     int    // Number of task records produced
	Error     string // Error message when Success is false
}

// NewWorkflowCompletedEvent creates a WorkflowCompletedEvent.
func NewWorkflowCompletedEvent(sessionID, workflow string, success bool, tasks int, errMsg string) WorkflowCompletedEvent {
	return WorkflowCompletedEvent{
		baseEvent: newBaseEvent("workflow.completed"),
		SessionID: sessionID,
		Workflow:  workflow,
		Success:   success,
		Tasks:     tasks,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Ralph Loop Events
// -----------------------------------------------------------------------------

// RalphIterationEvent is emitted after each ralph loop iteration.
type RalphIterationEvent struct {
	baseEvent
	SessionID   string // Session the loop runs under
	Iteration   int    // 1-indexed iteration number
	Success     bool   // Whether the adapter call succeeded
	MarkerFound bool   // Whether the completion marker was detected
}

// NewRalphIterationEvent creates a RalphIterationEvent.
func NewRalphIterationEvent(sessionID string, iteration int, success, markerFound bool) RalphIterationEvent {
	return RalphIterationEvent{
		baseEvent:   newBaseEvent("ralph.iteration"),
		SessionID:   sessionID,
		Iteration:   iteration,
		Success:     success,
		MarkerFound: markerFound,
	}
}

// RalphFinishedEvent is emitted when a ralph loop terminates for any reason.
type RalphFinishedEvent struct {
	baseEvent
	SessionID  string // Session the loop ran under
	Iterations int    // Total iterations performed
	Completed  bool   // True if the completion marker was found
	Cancelled  bool   // True if the loop was cancelled
}

// NewRalphFinishedEvent creates a RalphFinishedEvent.
func NewRalphFinishedEvent(sessionID string, iterations int, completed, cancelled bool) RalphFinishedEvent {
	return RalphFinishedEvent{
		baseEvent:  newBaseEvent("ralph.finished"),
		SessionID:  sessionID,
		Iterations: iterations,
		Completed:  completed,
		Cancelled:  cancelled,
	}
}
