package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gudastudio/maw/internal/logging"
)

// NativeAdapter is the in-process backend. It acknowledges tasks
// synchronously and exists so the orchestration core can treat the host
// agent through the same interface as the bridged CLIs.
type NativeAdapter struct {
	name   string
	model  string
	logger *logging.Logger
}

// NewNativeAdapter creates a native adapter under the given backend name.
func NewNativeAdapter(name, model string, logger *logging.Logger) *NativeAdapter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &NativeAdapter{name: name, model: model, logger: logger.WithBackend(name)}
}

// Name returns the backend identifier.
func (a *NativeAdapter) Name() string { return a.name }

// IsAvailable always reports true; the native backend has no external
// process to probe.
func (a *NativeAdapter) IsAvailable(ctx context.Context) bool { return true }

// Execute acknowledges the task synchronously. A continuation token is
// issued on first use and echoed back on subsequent calls.
func (a *NativeAdapter) Execute(ctx context.Context, opts Options) (*ExecutionResult, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	content := fmt.Sprintf("Acknowledged task in %s:\n%s", opts.WorkDir, opts.Prompt)
	a.logger.Debug("native execution", "session_id", sessionID)

	return &ExecutionResult{
		Success:   true,
		SessionID: sessionID,
		Content:   content,
		Artifacts: ExtractArtifacts(content),
		Metadata: Metadata{
			Backend:  a.name,
			Model:    a.model,
			Duration: time.Since(start),
		},
	}, nil
}

// ExecuteStream sends the full acknowledgment as a single chunk.
func (a *NativeAdapter) ExecuteStream(ctx context.Context, opts Options, chunks chan<- string) (*ExecutionResult, error) {
	result, err := a.Execute(ctx, opts)
	if err != nil {
		return nil, err
	}

	select {
	case chunks <- result.Content:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return result, nil
}
