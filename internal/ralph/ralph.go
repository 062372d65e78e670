// Package ralph implements the persistence loop: the same prompt is fed to
// one backend repeatedly until the backend's output contains a completion
// marker, an iteration cap is reached, or the caller cancels. Named for the
// brute-force "keep asking until it's done" technique.
package ralph

import (
	"context"
	"strings"
	"time"

	"github.com/gudastudio/maw/internal/adapter"
	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/event"
	"github.com/gudastudio/maw/internal/logging"
	"github.com/gudastudio/maw/internal/session"
)

// Loop states.
const (
	StateWorking       = "working"
	StateComplete      = "complete"
	StateMaxIterations = "max_iterations"
	StateCancelled     = "cancelled"
)

// defaultMaxIterations caps loops that do not set their own limit.
const defaultMaxIterations = 10

// outputTruncateLen bounds how much backend output is kept per iteration.
const outputTruncateLen = 2000

// Options configures one loop.
type Options struct {
	// MaxIterations caps the loop (default 10).
	MaxIterations int
	// CompletionMarker is the substring whose appearance in backend output
	// ends the loop successfully. Empty means the loop always runs to the cap.
	CompletionMarker string
	// Backend names the backend to drive, or "auto" to pick one from the
	// prompt before the first iteration.
	Backend string
	// WorkDir is the directory the backend operates in.
	WorkDir string
	// Sandbox overrides the sandbox level (default workspace-write).
	Sandbox string
	// Delay is the pause between iterations.
	Delay time.Duration
}

// Controller starts loops. It shares the adapter registry and session
// manager with the rest of the orchestration core.
type Controller struct {
	adapters *adapter.Registry
	sessions *session.Manager
	bus      *event.Bus
	logger   *logging.Logger
}

// NewController creates a loop controller.
func NewController(adapters *adapter.Registry, sessions *session.Manager, bus *event.Bus, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Controller{
		adapters: adapters,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
	}
}

// Start validates the request, resolves the backend, creates a session, and
// launches the loop goroutine. The returned handle observes and controls
// the running loop.
func (c *Controller) Start(ctx context.Context, prompt string, opts Options) (*Loop, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.NewValidationError("prompt must not be empty").WithField("prompt")
	}
	if opts.MaxIterations < 0 {
		return nil, errors.NewValidationError("max iterations must be >= 0").
			WithField("max_iterations").WithValue(opts.MaxIterations)
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Sandbox == "" {
		opts.Sandbox = adapter.SandboxWorkspaceWrite
	}

	backendName := opts.Backend
	if backendName == "" || backendName == "auto" {
		backendName = c.pickBackend(prompt)
	}
	backend, err := c.adapters.Resolve(backendName)
	if err != nil {
		return nil, err
	}

	sess, err := c.sessions.Create(sessionName(prompt), "lite")
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loop := &Loop{
		sessionID: sess.ID,
		state:     StateWorking,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	logger := c.logger.WithSession(sess.ID).WithBackend(backendName)
	logger.Info("ralph loop started",
		"max_iterations", opts.MaxIterations, "marker", opts.CompletionMarker)

	go c.run(loopCtx, loop, backend, prompt, opts, logger)
	return loop, nil
}

// run drives the iterations. Failed iterations count toward the cap; the
// loop only stops on marker, cap, or cancellation observed at the top of
// an iteration.
func (c *Controller) run(ctx context.Context, loop *Loop, backend adapter.Adapter, prompt string, opts Options, logger *logging.Logger) {
	startTime := time.Now().UTC()

	finish := func(state string) {
		endTime := time.Now().UTC()
		loop.finish(state)

		summary := loop.Summary()
		if err := writeHistory(c.sessions.StateRoot(), loop.sessionID, startTime, endTime, summary, loop.History()); err != nil {
			logger.Error("failed to persist loop history", "error", err)
		}

		logger.Info("ralph loop finished",
			"state", state, "iterations", summary.TotalIterations)
		if c.bus != nil {
			c.bus.Publish(event.NewRalphFinishedEvent(
				loop.sessionID, summary.TotalIterations, summary.Completed, summary.Cancelled))
		}
		loop.release()
	}

	continuation := ""
	for i := 1; i <= opts.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			finish(StateCancelled)
			return
		default:
		}

		iterStart := time.Now()
		result, err := backend.Execute(ctx, adapter.Options{
			Prompt:    prompt,
			WorkDir:   opts.WorkDir,
			Sandbox:   opts.Sandbox,
			SessionID: continuation,
		})

		record := IterationRecord{
			Index:     i,
			Timestamp: iterStart.UTC(),
			Duration:  time.Since(iterStart),
		}

		switch {
		case err != nil:
			if ctx.Err() != nil {
				loop.append(record)
				finish(StateCancelled)
				return
			}
			record.Output = truncate(err.Error(), outputTruncateLen)
			logger.Warn("iteration failed", "iteration", i, "error", err)
		case !result.Success:
			record.Output = truncate(result.Error, outputTruncateLen)
			logger.Warn("iteration failed", "iteration", i, "error", result.Error)
		default:
			record.Success = true
			record.Output = truncate(result.Content, outputTruncateLen)
			if result.SessionID != "" {
				continuation = result.SessionID
				if err := c.sessions.LinkBackendSession(loop.sessionID, backend.Name(), result.SessionID); err != nil {
					logger.Warn("failed to link backend session", "error", err)
				}
			}
			if opts.CompletionMarker != "" && strings.Contains(result.Content, opts.CompletionMarker) {
				record.MarkerFound = true
			}
		}

		loop.append(record)
		if c.bus != nil {
			c.bus.Publish(event.NewRalphIterationEvent(loop.sessionID, i, record.Success, record.MarkerFound))
		}

		if record.MarkerFound {
			finish(StateComplete)
			return
		}

		if i < opts.MaxIterations && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				finish(StateCancelled)
				return
			case <-time.After(opts.Delay):
			}
		}
	}

	finish(StateMaxIterations)
}

// pickBackend scores the prompt for explicit backend mentions, falling
// back to the first registered backend.
func (c *Controller) pickBackend(prompt string) string {
	lower := strings.ToLower(prompt)

	best := ""
	bestScore := 0
	for _, name := range c.adapters.Names() {
		score := strings.Count(lower, name)
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	if best != "" {
		return best
	}

	if names := c.adapters.Names(); len(names) > 0 {
		return names[0]
	}
	return "claude"
}

// sessionName derives a short display name from the prompt.
func sessionName(prompt string) string {
	name := strings.TrimSpace(prompt)
	if idx := strings.IndexByte(name, '\n'); idx >= 0 {
		name = name[:idx]
	}
	return "ralph: " + truncate(name, 60)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
