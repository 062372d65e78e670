package workflow

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/gudastudio/maw/internal/adapter"
	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/event"
	"github.com/gudastudio/maw/internal/session"
)

// stubAdapter lets tests script backend behavior per call.
type stubAdapter struct {
	name string
	exec func(ctx context.Context, opts adapter.Options) (*adapter.ExecutionResult, error)

	mu    sync.Mutex
	calls []adapter.Options
}

func (s *stubAdapter) Name() string                         { return s.name }
func (s *stubAdapter) IsAvailable(ctx context.Context) bool { return true }

func (s *stubAdapter) Execute(ctx context.Context, opts adapter.Options) (*adapter.ExecutionResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, opts)
	s.mu.Unlock()
	return s.exec(ctx, opts)
}

func (s *stubAdapter) ExecuteStream(ctx context.Context, opts adapter.Options, chunks chan<- string) (*adapter.ExecutionResult, error) {
	return s.Execute(ctx, opts)
}

func okResult(backend, content, token string) *adapter.ExecutionResult {
	return &adapter.ExecutionResult{
		Success:   true,
		SessionID: token,
		Content:   content,
		Metadata:  adapter.Metadata{Backend: backend},
	}
}

func alwaysOK(name, token string) *stubAdapter {
	return &stubAdapter{
		name: name,
		exec: func(ctx context.Context, opts adapter.Options) (*adapter.ExecutionResult, error) {
			return okResult(name, "done: "+opts.Prompt, token), nil
		},
	}
}

type testEnv struct {
	engine   *Engine
	sessions *session.Manager
	registry *adapter.Registry
	bus      *event.Bus
	workDir  string
}

func newTestEnv(t *testing.T, adapters ...adapter.Adapter) *testEnv {
	t.Helper()
	bus := event.NewBus()
	sessions, err := session.NewManager(t.TempDir(), nil, bus)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	registry := adapter.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	return &testEnv{
		engine:   NewEngine(registry, sessions, bus, nil),
		sessions: sessions,
		registry: registry,
		bus:      bus,
		workDir:  t.TempDir(),
	}
}

func TestExecuteLite(t *testing.T) {
	env := newTestEnv(t, alwaysOK("claude", "tok-c"))

	result, err := env.engine.Execute(context.Background(), LiteTemplate(), ExecutionContext{
		Task:    "fix typos",
		WorkDir: env.workDir,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if !result.Success {
		t.Errorf("expected success, got error: %s", result.Err)
	}
	if len(result.Tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(result.Tasks))
	}
	if result.Tasks[0].Status != session.TaskCompleted {
		t.Errorf("task status = %q, want completed", result.Tasks[0].Status)
	}
	if result.Session.Status != session.StatusCompleted {
		t.Errorf("session status = %q, want completed", result.Session.Status)
	}
	if result.Session.BackendSessions["claude"] != "tok-c" {
		t.Error("continuation token should be linked to the session")
	}
}

func TestExecuteCriticalFailureShortCircuits(t *testing.T) {
	claude := alwaysOK("claude", "tok-c")
	codex := &stubAdapter{
		name: "codex",
		exec: func(ctx context.Context, opts adapter.Options) (*adapter.ExecutionResult, error) {
			return &adapter.ExecutionResult{Success: false, Error: "model refused"}, nil
		},
	}
	env := newTestEnv(t, claude, codex)

	result, err := env.engine.Execute(context.Background(), FullTemplate(), ExecutionContext{
		Task:    "refactor",
		WorkDir: env.workDir,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if result.Success {
		t.Error("expected workflow failure")
	}
	if len(result.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2 (plan + failed delegate, no review)", len(result.Tasks))
	}
	if result.Tasks[1].Status != session.TaskFailed {
		t.Errorf("second task status = %q, want failed", result.Tasks[1].Status)
	}
	if !strings.Contains(result.Err, "model refused") {
		t.Errorf("Err = %q, want the failing phase's error", result.Err)
	}
	if result.Session.Status != session.StatusPaused {
		t.Errorf("session status = %q, want paused", result.Session.Status)
	}
}

func TestExecuteReviewFailureIsNotCritical(t *testing.T) {
	claude := &stubAdapter{
		name: "claude",
		exec: func(ctx context.Context, opts adapter.Options) (*adapter.ExecutionResult, error) {
			if strings.Contains(opts.Prompt, "Review") {
				return &adapter.ExecutionResult{Success: false, Error: "nitpicks found"}, nil
			}
			return okResult("claude", "fine", "tok-c"), nil
		},
	}
	env := newTestEnv(t, claude, alwaysOK("codex", "tok-x"))

	result, err := env.engine.Execute(context.Background(), FullTemplate(), ExecutionContext{
		Task:    "tidy",
		WorkDir: env.workDir,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if !result.Success {
		t.Errorf("review failure should not fail the workflow, got: %s", result.Err)
	}
	if len(result.Tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(result.Tasks))
	}
	if result.Tasks[2].Status != session.TaskFailed {
		t.Error("the review task itself should be recorded as failed")
	}
	if result.Session.Status != session.StatusCompleted {
		t.Errorf("session status = %q, want completed", result.Session.Status)
	}
}

func TestExecuteZeroPhases(t *testing.T) {
	env := newTestEnv(t, alwaysOK("claude", ""))

	result, err := env.engine.Execute(context.Background(), &Definition{
		Name:  "empty",
		Level: "lite",
	}, ExecutionContext{Task: "noop", WorkDir: env.workDir})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if !result.Success {
		t.Error("zero phases should succeed immediately")
	}
	if len(result.Tasks) != 0 {
		t.Errorf("got %d tasks, want 0", len(result.Tasks))
	}
	if result.Session.Status != session.StatusCompleted {
		t.Errorf("session status = %q, want completed", result.Session.Status)
	}
}

func TestExecutePanickingAdapter(t *testing.T) {
	boom := &stubAdapter{
		name: "claude",
		exec: func(ctx context.Context, opts adapter.Options) (*adapter.ExecutionResult, error) {
			panic("adapter blew up")
		},
	}
	env := newTestEnv(t, boom)

	result, err := env.engine.Execute(context.Background(), LiteTemplate(), ExecutionContext{
		Task:    "risky",
		WorkDir: env.workDir,
	})
	if err != nil {
		t.Fatalf("panic should be contained, got error: %v", err)
	}

	if result.Success {
		t.Error("a panicking adapter should fail the phase")
	}
	if !strings.Contains(result.Err, "adapter blew up") {
		t.Errorf("Err = %q, want panic message", result.Err)
	}
	if result.Session.Status != session.StatusPaused {
		t.Errorf("session status = %q, want paused", result.Session.Status)
	}
}

func TestPlanningPersistsPlan(t *testing.T) {
	env := newTestEnv(t, alwaysOK("claude", "tok-c"), alwaysOK("codex", "tok-x"))

	result, err := env.engine.Execute(context.Background(), QuickTemplate(), ExecutionContext{
		Task:    "build feature",
		WorkDir: env.workDir,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("workflow failed: %s", result.Err)
	}

	planDir := filepath.Join(env.sessions.StateRoot(), "plans", result.Session.ID)
	entries, err := os.ReadDir(planDir)
	if err != nil || len(entries) != 1 {
		t.Errorf("expected one persisted plan, err=%v", err)
	}
}

func TestSandboxRouting(t *testing.T) {
	claude := alwaysOK("claude", "")
	codex := alwaysOK("codex", "")
	env := newTestEnv(t, claude, codex)

	def := &Definition{
		Name:  "sandboxes",
		Level: "lite",
		Phases: []Phase{
			{ID: "d", Name: "delegate", Type: PhaseDelegation, AssignedAI: "codex",
				Config: map[string]string{"sandbox": "danger-full-access"}},
			{ID: "e", Name: "execute", Type: PhaseExecution, AssignedAI: "claude"},
		},
	}

	if _, err := env.engine.Execute(context.Background(), def, ExecutionContext{
		Task: "t", WorkDir: env.workDir,
	}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if codex.calls[0].Sandbox != adapter.SandboxReadOnly {
		t.Errorf("delegation sandbox = %q, want read-only regardless of config", codex.calls[0].Sandbox)
	}
	if claude.calls[0].Sandbox != adapter.SandboxWorkspaceWrite {
		t.Errorf("execution sandbox = %q, want workspace-write", claude.calls[0].Sandbox)
	}
}

func TestContinuationTokenReuse(t *testing.T) {
	claude := alwaysOK("claude", "tok-1")
	env := newTestEnv(t, claude)

	def := &Definition{
		Name:  "two-step",
		Level: "lite",
		Phases: []Phase{
			{ID: "a", Name: "first", Type: PhaseExecution, AssignedAI: "claude"},
			{ID: "b", Name: "second", Type: PhaseExecution, AssignedAI: "claude"},
		},
	}

	if _, err := env.engine.Execute(context.Background(), def, ExecutionContext{
		Task: "t", WorkDir: env.workDir,
	}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if claude.calls[0].SessionID != "" {
		t.Error("first call should have no continuation token")
	}
	if claude.calls[1].SessionID != "tok-1" {
		t.Errorf("second call SessionID = %q, want tok-1", claude.calls[1].SessionID)
	}
}

func TestDependencyAwareScheduling(t *testing.T) {
	env := newTestEnv(t, alwaysOK("claude", ""), alwaysOK("codex", ""), alwaysOK("gemini", ""))

	result, err := env.engine.Execute(context.Background(), ParallelAnalysisTemplate(), ExecutionContext{
		Task:    "assess",
		WorkDir: env.workDir,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !result.Success {
		t.Fatalf("workflow failed: %s", result.Err)
	}

	// Result order matches declared phase order regardless of which
	// analysis finished first.
	want := []string{"analyze-codex", "analyze-gemini", "synthesize"}
	if len(result.Tasks) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(result.Tasks), len(want))
	}
	for i, prefix := range want {
		if !strings.HasPrefix(result.Tasks[i].Description, prefix) {
			t.Errorf("task[%d] = %q, want prefix %q", i, result.Tasks[i].Description, prefix)
		}
	}
}

func TestValidateDefinition(t *testing.T) {
	env := newTestEnv(t, alwaysOK("claude", ""))
	ctx := context.Background()

	t.Run("unknown phase type", func(t *testing.T) {
		def := &Definition{Name: "bad", Level: "lite", Phases: []Phase{
			{ID: "x", Type: "compile"},
		}}
		_, err := env.engine.Execute(ctx, def, ExecutionContext{Task: "t", WorkDir: env.workDir})
		if !errors.Is(err, errors.ErrUnknownPhaseType) {
			t.Errorf("expected ErrUnknownPhaseType, got %v", err)
		}
	})

	t.Run("empty task", func(t *testing.T) {
		_, err := env.engine.Execute(ctx, LiteTemplate(), ExecutionContext{WorkDir: env.workDir})
		var vErr *errors.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("expected *ValidationError, got %v", err)
		}
	})

	t.Run("duplicate phase IDs", func(t *testing.T) {
		def := &Definition{Name: "dup", Level: "lite", Phases: []Phase{
			{ID: "x", Type: PhaseExecution},
			{ID: "x", Type: PhaseExecution},
		}}
		_, err := env.engine.Execute(ctx, def, ExecutionContext{Task: "t", WorkDir: env.workDir})
		if err == nil {
			t.Error("duplicate phase IDs should be rejected")
		}
	})

	t.Run("zero max concurrency", func(t *testing.T) {
		def := &Definition{Name: "p", Level: "lite", Parallel: &ParallelConfig{MaxConcurrency: 0}}
		_, err := env.engine.Execute(ctx, def, ExecutionContext{Task: "t", WorkDir: env.workDir})
		if err == nil {
			t.Error("zero max concurrency should be rejected")
		}
	})
}

func TestWorkflowEvents(t *testing.T) {
	env := newTestEnv(t, alwaysOK("claude", ""))

	var types []string
	env.bus.SubscribeAll(func(e event.Event) {
		types = append(types, e.EventType())
	})

	if _, err := env.engine.Execute(context.Background(), LiteTemplate(), ExecutionContext{
		Task: "watch me", WorkDir: env.workDir,
	}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	want := []string{
		"session.created",
		"workflow.started",
		"workflow.phase_started",
		"workflow.phase_completed",
		"session.status_changed",
		"workflow.completed",
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("event sequence = %v, want %v", types, want)
	}
}
