package ralph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gudastudio/maw/internal/errors"
)

// IterationRecord captures one loop iteration.
type IterationRecord struct {
	Index       int           `json:"index"`
	Timestamp   time.Time     `json:"timestamp"`
	Output      string        `json:"output"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	MarkerFound bool          `json:"marker_found"`
}

// Summary is a point-in-time view of a loop.
type Summary struct {
	SessionID       string
	State           string
	TotalIterations int
	Completed       bool
	Cancelled       bool
}

// Loop is the handle to a running (or finished) ralph loop. All methods
// are safe for concurrent use.
type Loop struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}

	mu      sync.RWMutex
	state   string
	history []IterationRecord
}

// SessionID returns the session the loop runs under.
func (l *Loop) SessionID() string { return l.sessionID }

// Cancel requests cooperative cancellation. The loop observes it at the
// top of its next iteration. Cancelling a finished loop is an error.
func (l *Loop) Cancel() error {
	l.mu.RLock()
	finished := l.state != StateWorking
	l.mu.RUnlock()

	if finished {
		return errors.NewSessionError("cannot cancel", errors.ErrLoopAlreadyFinished).
			WithSessionID(l.sessionID)
	}
	l.cancel()
	return nil
}

// Status returns the loop's current summary.
func (l *Loop) Status() Summary {
	return l.Summary()
}

// Summary returns a consistent snapshot of the loop state.
func (l *Loop) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Summary{
		SessionID:       l.sessionID,
		State:           l.state,
		TotalIterations: len(l.history),
		Completed:       l.state == StateComplete,
		Cancelled:       l.state == StateCancelled,
	}
}

// Wait blocks until the loop terminates or the context is done.
func (l *Loop) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// History returns a copy of the iteration records so far.
func (l *Loop) History() []IterationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]IterationRecord, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Loop) append(record IterationRecord) {
	l.mu.Lock()
	l.history = append(l.history, record)
	l.mu.Unlock()
}

// finish settles the loop state. Wait stays blocked until release so the
// history file is on disk before observers are unblocked.
func (l *Loop) finish(state string) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
	l.cancel()
}

func (l *Loop) release() {
	close(l.done)
}

// historyFile is the on-disk shape of a finished loop.
type historyFile struct {
	SessionID       string            `json:"session_id"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	TotalIterations int               `json:"total_iterations"`
	Completed       bool              `json:"completed"`
	Cancelled       bool              `json:"cancelled"`
	History         []IterationRecord `json:"history"`
}

// writeHistory persists the loop record under <stateRoot>/ralph/.
func writeHistory(stateRoot, sessionID string, start, end time.Time, summary Summary, history []IterationRecord) error {
	dir := filepath.Join(stateRoot, "ralph")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ralph dir: %w", err)
	}

	record := historyFile{
		SessionID:       sessionID,
		StartTime:       start,
		EndTime:         end,
		TotalIterations: summary.TotalIterations,
		Completed:       summary.Completed,
		Cancelled:       summary.Cancelled,
		History:         history,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode loop history: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, sessionID+".json"), data, 0o644)
}
