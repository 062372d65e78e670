// Package adapter provides a uniform interface over heterogeneous AI backends.
// The native backend runs in-process; bridge backends shell out to external
// CLI agents through bridge scripts. All backend-side failures surface as
// failed ExecutionResults, never as Go errors; Go errors are reserved for
// invalid options and configuration problems.
package adapter

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gudastudio/maw/internal/errors"
)

// Sandbox levels accepted by bridge backends.
const (
	SandboxReadOnly         = "read-only"
	SandboxWorkspaceWrite   = "workspace-write"
	SandboxDangerFullAccess = "danger-full-access"
)

// Adapter is the uniform execution interface over AI backends.
type Adapter interface {
	// Execute runs a single prompt against the backend and returns the result.
	// Backend-side failures produce a result with Success=false; a non-nil
	// error indicates invalid options or a configuration problem.
	Execute(ctx context.Context, opts Options) (*ExecutionResult, error)

	// ExecuteStream behaves like Execute but additionally sends raw output
	// chunks on the provided channel as they arrive. The adapter never
	// closes the channel; the caller owns it.
	ExecuteStream(ctx context.Context, opts Options, chunks chan<- string) (*ExecutionResult, error)

	// IsAvailable reports whether the backend can currently accept work.
	// It never returns an error and never panics.
	IsAvailable(ctx context.Context) bool

	// Name returns the backend identifier (e.g., "claude", "codex").
	Name() string
}

// Options describes a single backend execution request.
type Options struct {
	// Prompt is the task text sent to the backend. Required.
	Prompt string
	// WorkDir is the working directory the backend operates in. Required,
	// must exist.
	WorkDir string
	// Sandbox is the filesystem access level for bridge backends. Empty
	// means the adapter's configured default.
	Sandbox string
	// SessionID is an optional backend continuation token from a previous
	// execution.
	SessionID string
	// ImagePath is an optional image attachment path.
	ImagePath string
	// Model is an optional model override.
	Model string
}

// Validate checks the options before any I/O happens. Invalid options are
// programmer errors and are reported as typed validation errors.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Prompt) == "" {
		return errors.NewValidationError("prompt must not be empty").
			WithField("prompt")
	}

	if o.WorkDir == "" {
		return errors.NewValidationError("working directory must not be empty").
			WithField("work_dir")
	}
	info, err := os.Stat(o.WorkDir)
	if err != nil || !info.IsDir() {
		return errors.NewValidationError("working directory does not exist").
			WithField("work_dir").
			WithValue(o.WorkDir)
	}

	switch o.Sandbox {
	case "", SandboxReadOnly, SandboxWorkspaceWrite, SandboxDangerFullAccess:
	default:
		return errors.NewValidationError("unknown sandbox level").
			WithField("sandbox").
			WithValue(o.Sandbox)
	}

	return nil
}

// ExecutionResult is the outcome of a single backend execution.
//
// Invariant: when Success is false, Error is non-empty.
type ExecutionResult struct {
	// Success reports whether the backend completed the task.
	Success bool
	// SessionID is the backend's continuation token, when one was issued.
	SessionID string
	// Content is the backend's textual output. On malformed bridge output
	// this preserves the raw stdout for diagnosis.
	Content string
	// Artifacts are fenced code blocks extracted from Content.
	Artifacts []Artifact
	// Metadata carries execution provenance.
	Metadata Metadata
	// Error describes the failure when Success is false.
	Error string
}

// Artifact is a structured piece of backend output.
type Artifact struct {
	Type     string // currently always "code"
	Language string // fence language tag, "text" when untagged
	Content  string
}

// Metadata records provenance for an execution.
type Metadata struct {
	Backend  string
	Model    string
	Tokens   int
	Duration time.Duration
}

// failure builds a failed result, enforcing the Success/Error invariant.
func failure(backend, model, content, errMsg string, elapsed time.Duration) *ExecutionResult {
	if errMsg == "" {
		errMsg = "backend execution failed"
	}
	return &ExecutionResult{
		Success: false,
		Content: content,
		Error:   errMsg,
		Metadata: Metadata{
			Backend:  backend,
			Model:    model,
			Duration: elapsed,
		},
	}
}
