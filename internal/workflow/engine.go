package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/gudastudio/maw/internal/adapter"
	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/event"
	"github.com/gudastudio/maw/internal/logging"
	"github.com/gudastudio/maw/internal/session"
)

// resultTruncateLen bounds how much phase output is copied into a task
// record; full output still flows through Result.Artifacts.
const resultTruncateLen = 1000

// Engine executes workflow definitions. It owns no state of its own; all
// durable effects go through the session manager.
type Engine struct {
	adapters *adapter.Registry
	sessions *session.Manager
	bus      *event.Bus
	logger   *logging.Logger
}

// NewEngine creates an engine over the given adapters and session manager.
func NewEngine(adapters *adapter.Registry, sessions *session.Manager, bus *event.Bus, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		adapters: adapters,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
	}
}

// phaseOutcome is the in-memory result of one phase dispatch. The task
// record is finalized exactly once before it is appended to the session.
type phaseOutcome struct {
	dispatched bool
	record     session.TaskRecord
	artifacts  []Artifact
	failed     bool
	critical   bool
	errMsg     string
}

// Execute runs a workflow definition. Setup problems (invalid definition,
// dependency cycles, session provisioning) return Go errors; phase
// failures are reported through Result.Success and Result.Err.
func (e *Engine) Execute(ctx context.Context, def *Definition, execCtx ExecutionContext) (*Result, error) {
	if err := validateDefinition(def, execCtx); err != nil {
		return nil, err
	}

	var stages [][]int
	if def.Parallel != nil && def.Parallel.DependencyAware {
		var err error
		stages, err = computeStages(def.Phases)
		if err != nil {
			return nil, err
		}
	} else {
		stages = sequentialStages(def.Phases)
	}

	name := execCtx.SessionName
	if name == "" {
		name = execCtx.Task
	}
	sess, err := e.sessions.Create(name, def.Level)
	if err != nil {
		return nil, err
	}

	logger := e.logger.WithSession(sess.ID).With("workflow", def.Name)
	logger.Info("workflow started", "phases", len(def.Phases))
	e.publish(event.NewWorkflowStartedEvent(sess.ID, def.Name, len(def.Phases)))

	limit := 1
	if def.Parallel != nil {
		limit = def.Parallel.MaxConcurrency
	}

	outcomes := make([]phaseOutcome, len(def.Phases))

	for _, stage := range stages {
		e.runStage(ctx, def, execCtx, sess.ID, stage, limit, outcomes, logger)

		critical := false
		for _, i := range stage {
			if outcomes[i].critical {
				critical = true
			}
		}
		if critical {
			break
		}
	}

	return e.finish(def, sess.ID, outcomes, logger)
}

// runStage dispatches the phases of one stage, bounded by limit.
func (e *Engine) runStage(ctx context.Context, def *Definition, execCtx ExecutionContext, sessionID string, stage []int, limit int, outcomes []phaseOutcome, logger *logging.Logger) {
	if len(stage) == 1 || limit <= 1 {
		for _, i := range stage {
			outcomes[i] = e.dispatch(ctx, def, execCtx, sessionID, def.Phases[i], logger)
			if outcomes[i].critical {
				return
			}
		}
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, i := range stage {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = e.dispatch(ctx, def, execCtx, sessionID, def.Phases[i], logger)
		}(i)
	}
	wg.Wait()
}

// dispatch runs a single phase against its adapter and produces a finalized
// outcome. Adapter panics and errors both land on the failure path; the
// task record is finalized exactly once.
func (e *Engine) dispatch(ctx context.Context, def *Definition, execCtx ExecutionContext, sessionID string, phase Phase, logger *logging.Logger) phaseOutcome {
	outcome := phaseOutcome{
		dispatched: true,
		record: session.TaskRecord{
			Description: fmt.Sprintf("%s: %s", phase.ID, phase.Name),
			Status:      session.TaskInProgress,
		},
	}

	backendName := phase.AssignedAI
	if backendName == "" || backendName == "auto" {
		backendName = e.autoBackend(phase.Type)
	}
	outcome.record.AssignedBackend = backendName

	phaseLogger := logger.WithPhase(phase.ID).WithBackend(backendName)
	e.publish(event.NewPhaseStartedEvent(sessionID, phase.ID, phase.Type, backendName))

	result, err := e.callAdapter(ctx, backendName, phase, execCtx, sessionID)

	switch {
	case err != nil:
		outcome.failed = true
		outcome.errMsg = err.Error()
	case !result.Success:
		outcome.failed = true
		outcome.errMsg = result.Error
		if outcome.errMsg == "" {
			outcome.errMsg = "phase failed without detail"
		}
	}

	if outcome.failed {
		outcome.critical = phase.Type != PhaseReview
		outcome.record.Status = session.TaskFailed
		outcome.record.Result = outcome.errMsg
		phaseLogger.Warn("phase failed", "error", outcome.errMsg, "critical", outcome.critical)
	} else {
		outcome.record.Status = session.TaskCompleted
		outcome.record.Result = truncate(result.Content, resultTruncateLen)
		for _, a := range result.Artifacts {
			outcome.artifacts = append(outcome.artifacts, Artifact{
				PhaseID:  phase.ID,
				Type:     a.Type,
				Language: a.Language,
				Content:  a.Content,
			})
		}

		if result.SessionID != "" {
			if err := e.sessions.LinkBackendSession(sessionID, backendName, result.SessionID); err != nil {
				phaseLogger.Warn("failed to link backend session", "error", err)
			}
		}
		if phase.Type == PhasePlanning {
			if err := e.sessions.SavePlan(sessionID, result.Content); err != nil {
				phaseLogger.Warn("failed to persist plan", "error", err)
			}
		}
		phaseLogger.Info("phase completed")
	}

	if err := e.sessions.AddTaskRecord(sessionID, outcome.record); err != nil {
		phaseLogger.Error("failed to record task", "error", err)
	}

	e.publish(event.NewPhaseCompletedEvent(sessionID, phase.ID, !outcome.failed, outcome.errMsg))
	return outcome
}

// callAdapter resolves the backend and executes the phase with panic
// recovery. A panicking adapter is reported as an error, not propagated.
func (e *Engine) callAdapter(ctx context.Context, backendName string, phase Phase, execCtx ExecutionContext, sessionID string) (result *adapter.ExecutionResult, err error) {
	a, err := e.adapters.Resolve(backendName)
	if err != nil {
		return nil, err
	}

	continuation := ""
	if sess, err := e.sessions.Get(sessionID); err == nil {
		continuation = sess.BackendSessions[backendName]
	}

	prompt := phase.Config["prompt"]
	if prompt == "" {
		prompt = buildPrompt(execCtx.Task, phase)
	}

	opts := adapter.Options{
		Prompt:    prompt,
		WorkDir:   execCtx.WorkDir,
		Sandbox:   sandboxFor(phase),
		SessionID: continuation,
		Model:     phase.Config["model"],
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()
	return a.Execute(ctx, opts)
}

// finish settles the session status, assembles the result in declared
// phase order, and emits the completion event.
func (e *Engine) finish(def *Definition, sessionID string, outcomes []phaseOutcome, logger *logging.Logger) (*Result, error) {
	result := &Result{Success: true}

	for _, o := range outcomes {
		if !o.dispatched {
			continue
		}
		result.Tasks = append(result.Tasks, o.record)
		result.Artifacts = append(result.Artifacts, o.artifacts...)
		if o.critical && result.Err == "" {
			result.Success = false
			result.Err = o.errMsg
		}
	}

	finalStatus := session.StatusCompleted
	if !result.Success {
		finalStatus = session.StatusPaused
	}
	if err := e.sessions.UpdateStatus(sessionID, finalStatus); err != nil {
		logger.Error("failed to settle session status", "status", finalStatus, "error", err)
	}

	if sess, err := e.sessions.Get(sessionID); err == nil {
		result.Session = sess
	}

	logger.Info("workflow finished", "success", result.Success, "tasks", len(result.Tasks))
	e.publish(event.NewWorkflowCompletedEvent(sessionID, def.Name, result.Success, len(result.Tasks), result.Err))
	return result, nil
}

// autoBackend picks the default backend for a phase type. Planning and
// review stay on the native backend; delegation goes to a bridge when one
// is registered.
func (e *Engine) autoBackend(phaseType string) string {
	want := "claude"
	if phaseType == PhaseDelegation {
		want = "codex"
	}

	for _, name := range e.adapters.Names() {
		if name == want {
			return want
		}
	}
	if names := e.adapters.Names(); len(names) > 0 {
		return names[0]
	}
	return want
}

// sandboxFor maps a phase to its sandbox level. Delegation is always
// read-only regardless of phase config; execution phases may write to the
// workspace.
func sandboxFor(phase Phase) string {
	switch phase.Type {
	case PhaseDelegation:
		return adapter.SandboxReadOnly
	case PhaseExecution:
		if s := phase.Config["sandbox"]; s != "" {
			return s
		}
		return adapter.SandboxWorkspaceWrite
	default:
		return adapter.SandboxReadOnly
	}
}

// buildPrompt generates the default prompt for a phase.
func buildPrompt(task string, phase Phase) string {
	switch phase.Type {
	case PhasePlanning:
		return fmt.Sprintf("Draft a step-by-step plan for the following task.\n\nTask: %s", task)
	case PhaseDelegation:
		return fmt.Sprintf("Analyze the following task and report findings without modifying any files.\n\nTask: %s", task)
	case PhaseReview:
		return fmt.Sprintf("Review the work done so far for the following task and flag any problems.\n\nTask: %s", task)
	default:
		return fmt.Sprintf("Complete the following task.\n\nTask: %s", task)
	}
}

// validateDefinition rejects definitions the engine cannot run.
func validateDefinition(def *Definition, execCtx ExecutionContext) error {
	if def == nil {
		return errors.NewValidationError("workflow definition is required").WithField("definition")
	}
	if execCtx.Task == "" {
		return errors.NewValidationError("task description must not be empty").WithField("task")
	}

	seen := make(map[string]bool, len(def.Phases))
	for _, p := range def.Phases {
		switch p.Type {
		case PhasePlanning, PhaseExecution, PhaseDelegation, PhaseReview:
		default:
			return errors.NewWorkflowError(
				fmt.Sprintf("phase %q has type %q", p.ID, p.Type),
				errors.ErrUnknownPhaseType).WithWorkflow(def.Name).WithPhase(p.ID)
		}
		if seen[p.ID] {
			return errors.NewValidationError("duplicate phase ID").
				WithField("phase").WithValue(p.ID)
		}
		seen[p.ID] = true
	}

	if def.Parallel != nil && def.Parallel.MaxConcurrency < 1 {
		return errors.NewValidationError("max concurrency must be >= 1").
			WithField("max_concurrency").WithValue(def.Parallel.MaxConcurrency)
	}
	return nil
}

func (e *Engine) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
