package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gudastudio/maw/internal/config"
	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/logging"
)

// BridgeAdapter runs an external CLI agent through a bridge script. Each
// execution is a fresh subprocess:
//
//	<interpreter> <script> --PROMPT <p> --cd <dir> --sandbox <level>
//	    [--SESSION_ID <tok>] [--image <path>] [--model <m>]
//
// The script prints a single JSON object on stdout:
//
//	{"success": bool, "SESSION_ID": string, "agent_messages": ..., "error": string}
//
// Concurrent spawns are bounded by a per-adapter semaphore.
type BridgeAdapter struct {
	name           string
	command        string
	interpreter    string
	script         string
	model          string
	defaultSandbox string
	sem            *dynamicSemaphore
	logger         *logging.Logger
}

// NewBridgeAdapter creates a bridge adapter from its backend configuration.
func NewBridgeAdapter(name string, cfg *config.BridgeBackendConfig, logger *logging.Logger) *BridgeAdapter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &BridgeAdapter{
		name:           name,
		command:        cfg.Command,
		interpreter:    cfg.Interpreter,
		script:         cfg.Script,
		model:          cfg.Model,
		defaultSandbox: cfg.DefaultSandbox,
		sem:            newDynamicSemaphore(cfg.MaxConcurrent),
		logger:         logger.WithBackend(name),
	}
}

// Name returns the backend identifier.
func (a *BridgeAdapter) Name() string { return a.name }

// IsAvailable probes the backend CLI with its version flag. Any failure,
// including a missing binary, reports false.
func (a *BridgeAdapter) IsAvailable(ctx context.Context) bool {
	if a.command == "" {
		return false
	}
	return exec.CommandContext(ctx, a.command, "--version").Run() == nil
}

// bridgeResponse is the JSON contract printed by bridge scripts.
type bridgeResponse struct {
	Success       bool          `json:"success"`
	SessionID     string        `json:"SESSION_ID"`
	AgentMessages agentMessages `json:"agent_messages"`
	Error         string        `json:"error"`
}

// agentMessages accepts either a single string or an array of strings;
// bridge scripts have emitted both shapes.
type agentMessages string

func (m *agentMessages) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = agentMessages(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = agentMessages(strings.Join(list, "\n"))
		return nil
	}
	// Unknown shape; keep the raw JSON so nothing is silently dropped.
	*m = agentMessages(string(data))
	return nil
}

// Execute spawns the bridge script and interprets its output.
func (a *BridgeAdapter) Execute(ctx context.Context, opts Options) (*ExecutionResult, error) {
	return a.run(ctx, opts, nil)
}

// ExecuteStream spawns the bridge script and forwards stdout lines on the
// chunks channel as they arrive, then interprets the accumulated output.
func (a *BridgeAdapter) ExecuteStream(ctx context.Context, opts Options, chunks chan<- string) (*ExecutionResult, error) {
	return a.run(ctx, opts, chunks)
}

func (a *BridgeAdapter) run(ctx context.Context, opts Options, chunks chan<- string) (*ExecutionResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if a.script == "" {
		return nil, errors.NewAdapterError("bridge script not configured", errors.ErrBackendUnavailable).
			WithBackend(a.name)
	}

	if err := a.sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer a.sem.Release()

	sandbox := opts.Sandbox
	if sandbox == "" {
		sandbox = a.defaultSandbox
	}
	model := opts.Model
	if model == "" {
		model = a.model
	}

	args := []string{a.script,
		"--PROMPT", opts.Prompt,
		"--cd", opts.WorkDir,
		"--sandbox", sandbox,
	}
	if opts.SessionID != "" {
		args = append(args, "--SESSION_ID", opts.SessionID)
	}
	if opts.ImagePath != "" {
		args = append(args, "--image", opts.ImagePath)
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	a.logger.Debug("spawning bridge",
		"script", a.script, "sandbox", sandbox, "session_id", opts.SessionID)

	start := time.Now()
	cmd := exec.CommandContext(ctx, a.interpreter, args...)
	cmd.Dir = opts.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr

	if chunks == nil {
		cmd.Stdout = &stdout
		err := cmd.Run()
		return a.interpret(ctx, opts, stdout.Bytes(), stderr.Bytes(), err, model, time.Since(start))
	}

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return failure(a.name, model, "", fmt.Sprintf("failed to open stdout pipe: %v", err), time.Since(start)), nil
	}
	if err := cmd.Start(); err != nil {
		return failure(a.name, model, "", fmt.Sprintf("failed to start bridge: %v", err), time.Since(start)), nil
	}

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stdout.WriteString(line)
		stdout.WriteByte('\n')
		select {
		case chunks <- line:
		case <-ctx.Done():
		}
	}

	waitErr := cmd.Wait()
	return a.interpret(ctx, opts, stdout.Bytes(), stderr.Bytes(), waitErr, model, time.Since(start))
}

// interpret converts a finished subprocess into an ExecutionResult. Process
// failures never become Go errors; only context cancellation does.
func (a *BridgeAdapter) interpret(ctx context.Context, opts Options, stdout, stderr []byte, runErr error, model string, elapsed time.Duration) (*ExecutionResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	rawOut := string(stdout)

	if runErr != nil {
		errMsg := strings.TrimSpace(string(stderr))
		if errMsg == "" {
			errMsg = runErr.Error()
		}
		a.logger.Warn("bridge process failed", "error", errMsg)
		return failure(a.name, model, rawOut, errMsg, elapsed), nil
	}

	var resp bridgeResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &resp); err != nil {
		a.logger.Warn("bridge emitted malformed output", "error", err)
		return failure(a.name, model, rawOut,
			fmt.Sprintf("bridge returned malformed output: %v", err), elapsed), nil
	}

	content := string(resp.AgentMessages)
	result := &ExecutionResult{
		Success:   resp.Success,
		SessionID: resp.SessionID,
		Content:   content,
		Artifacts: ExtractArtifacts(content),
		Error:     resp.Error,
		Metadata: Metadata{
			Backend:  a.name,
			Model:    model,
			Duration: elapsed,
		},
	}
	if !result.Success && result.Error == "" {
		result.Error = "bridge reported failure without detail"
	}

	a.logger.Debug("bridge finished",
		"success", result.Success, "session_id", result.SessionID, "duration", elapsed)
	return result, nil
}
