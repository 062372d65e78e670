// Package workflow defines multi-phase workflow definitions and the engine
// that executes them against the configured AI backends. A workflow is a
// declarative list of phases; the engine creates a session, dispatches each
// phase to an adapter, and records one task per dispatch.
package workflow

import "github.com/gudastudio/maw/internal/session"

// Phase types.
const (
	PhasePlanning   = "planning"
	PhaseExecution  = "execution"
	PhaseDelegation = "delegation"
	PhaseReview     = "review"
)

// Definition describes a workflow. Definitions are treated as immutable;
// the engine never modifies one.
type Definition struct {
	// Name identifies the workflow (e.g., "full", "lite").
	Name string
	// Level is the workflow level the session is bound to.
	Level string
	// Phases are the units of work, in declared order.
	Phases []Phase
	// AIAssignment is an optional free-form description of the routing
	// strategy, for display only.
	AIAssignment string
	// Parallel enables bounded concurrent phase execution when set.
	Parallel *ParallelConfig
}

// Phase is one unit of work inside a workflow.
type Phase struct {
	// ID uniquely identifies the phase within its definition.
	ID string
	// Name is the human-readable phase title.
	Name string
	// Type is planning, execution, delegation, or review.
	Type string
	// AssignedAI is a backend name, or "auto" to route by phase type.
	AssignedAI string
	// Inputs are artifact names this phase consumes. Under dependency-aware
	// scheduling a phase runs after every producer of its inputs.
	Inputs []string
	// Outputs are artifact names this phase produces.
	Outputs []string
	// Config carries per-phase settings. "prompt" overrides the generated
	// prompt; "sandbox" requests a sandbox level where the type allows it.
	Config map[string]string
}

// ParallelConfig bounds concurrent phase execution.
type ParallelConfig struct {
	// MaxConcurrency is the upper bound on simultaneous phases. Must be >= 1.
	MaxConcurrency int
	// DependencyAware groups phases into stages by their Inputs/Outputs
	// edges instead of running them strictly in declared order.
	DependencyAware bool
}

// ExecutionContext carries the caller's request into an engine run.
type ExecutionContext struct {
	// Task is the user's task description.
	Task string
	// WorkDir is the directory backends operate in.
	WorkDir string
	// SessionName overrides the session display name (defaults to Task).
	SessionName string
}

// Result is the outcome of one engine run.
type Result struct {
	// Success is true when every non-review phase succeeded.
	Success bool
	// Session is the final state of the session the run executed against.
	Session *session.UnifiedSession
	// Tasks are the dispatch records in declared-phase order.
	Tasks []session.TaskRecord
	// Artifacts are all artifacts extracted from phase outputs, in
	// declared-phase order.
	Artifacts []Artifact
	// Err describes the failing phase when Success is false.
	Err string
}

// Artifact is a structured output attributed to the phase that produced it.
type Artifact struct {
	PhaseID  string
	Type     string
	Language string
	Content  string
}
