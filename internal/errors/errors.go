// Package errors provides centralized error definitions and error handling
// utilities for the maw codebase. It defines domain-specific errors, semantic
// error types, error constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: errors related to unified session management
//   - WorkflowError: errors related to workflow execution
//   - AdapterError: errors related to AI backend invocation
//   - SkillError: errors related to skill discovery and installation
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSessionError("failed to load session", errors.ErrSessionNotFound)
//	err = err.WithSessionID("abc123")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSessionNotFound) { ... }
//
//	var wfErr *errors.WorkflowError
//	if errors.As(err, &wfErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	ErrSessionNotFound = New("session not found")
	// ErrSessionArchived indicates that a session is archived and cannot change.
	ErrSessionArchived = New("session is archived")
	// ErrSessionCorrupted indicates that persisted session data is corrupted.
	ErrSessionCorrupted = New("session data corrupted")
	// ErrInvalidTransition indicates a status transition that the transition
	// table does not allow.
	ErrInvalidTransition = New("invalid status transition")
)

// Workflow-related sentinel errors
var (
	// ErrWorkflowFailed indicates that a workflow stopped on a critical phase failure.
	ErrWorkflowFailed = New("workflow failed")
	// ErrPhaseFailed indicates that a single phase's adapter call failed.
	ErrPhaseFailed = New("phase failed")
	// ErrDependencyCycle indicates a circular dependency between phases.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrUnknownPhaseType indicates a phase type outside the known enumeration.
	ErrUnknownPhaseType = New("unknown phase type")
)

// Adapter-related sentinel errors
var (
	// ErrBackendUnavailable indicates that a backend's availability probe failed.
	ErrBackendUnavailable = New("backend unavailable")
	// ErrUnknownBackend indicates that no adapter is registered under a name.
	ErrUnknownBackend = New("unknown backend")
)

// Skill-related sentinel errors
var (
	// ErrSkillNotFound indicates that a skill could not be found in the catalog.
	ErrSkillNotFound = New("skill not found")
	// ErrNoWritableSkillPath indicates that no configured search path accepts installs.
	ErrNoWritableSkillPath = New("no writable skill search path")
)

// Ralph-loop sentinel errors
var (
	// ErrLoopAlreadyFinished indicates an operation on a loop that has ended.
	ErrLoopAlreadyFinished = New("loop already finished")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// MawError is the base interface for all maw errors. It extends the standard
// error interface with methods for error handling and classification.
type MawError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity { return e.severity }

func (e *baseError) IsRetryable() bool { return e.retryable }

func (e *baseError) IsUserFacing() bool { return e.userFacing }

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents errors related to unified session management.
//
// Example:
//
//	err := errors.NewSessionError("failed to load session", errors.ErrSessionNotFound)
//	err = err.WithSessionID("abc123")
type SessionError struct {
	baseError
	SessionID string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithSeverity sets the error severity.
func (e *SessionError) WithSeverity(s Severity) *SessionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	prefix := "session error"
	if e.SessionID != "" {
		prefix = fmt.Sprintf("session error [session=%s]", e.SessionID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkflowError represents errors related to workflow execution.
//
// Example:
//
//	err := errors.NewWorkflowError("phase execution failed", errors.ErrPhaseFailed)
//	err = err.WithPhase("delegate").WithWorkflow("full")
type WorkflowError struct {
	baseError
	Workflow string
	PhaseID  string
	Backend  string
}

// NewWorkflowError creates a new WorkflowError.
func NewWorkflowError(message string, cause error) *WorkflowError {
	return &WorkflowError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithWorkflow adds a workflow name to the error context.
func (e *WorkflowError) WithWorkflow(name string) *WorkflowError {
	e.Workflow = name
	return e
}

// WithPhase adds a phase ID to the error context.
func (e *WorkflowError) WithPhase(id string) *WorkflowError {
	e.PhaseID = id
	return e
}

// WithBackend adds a backend name to the error context.
func (e *WorkflowError) WithBackend(name string) *WorkflowError {
	e.Backend = name
	return e
}

// WithSeverity sets the error severity.
func (e *WorkflowError) WithSeverity(s Severity) *WorkflowError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *WorkflowError) Error() string {
	var parts []string
	if e.Workflow != "" {
		parts = append(parts, fmt.Sprintf("workflow=%s", e.Workflow))
	}
	if e.PhaseID != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.PhaseID))
	}
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}

	prefix := "workflow error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("workflow error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WorkflowError) Is(target error) bool {
	if _, ok := target.(*WorkflowError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AdapterError represents errors related to AI backend invocation.
// These are programmer/configuration errors; backend-side failures are
// reported through ExecutionResult, never as Go errors.
//
// Example:
//
//	err := errors.NewAdapterError("bridge script missing", errors.ErrBackendUnavailable)
//	err = err.WithBackend("codex")
type AdapterError struct {
	baseError
	Backend string
}

// NewAdapterError creates a new AdapterError.
func NewAdapterError(message string, cause error) *AdapterError {
	return &AdapterError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithBackend adds a backend name to the error context.
func (e *AdapterError) WithBackend(name string) *AdapterError {
	e.Backend = name
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *AdapterError) WithRetryable(r bool) *AdapterError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AdapterError) Error() string {
	prefix := "adapter error"
	if e.Backend != "" {
		prefix = fmt.Sprintf("adapter error [backend=%s]", e.Backend)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AdapterError) Is(target error) bool {
	if _, ok := target.(*AdapterError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SkillError represents errors related to skill discovery and installation.
type SkillError struct {
	baseError
	Skill string
	Path  string
}

// NewSkillError creates a new SkillError.
func NewSkillError(message string, cause error) *SkillError {
	return &SkillError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSkill adds a skill name to the error context.
func (e *SkillError) WithSkill(name string) *SkillError {
	e.Skill = name
	return e
}

// WithPath adds a filesystem path to the error context.
func (e *SkillError) WithPath(path string) *SkillError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *SkillError) Error() string {
	var parts []string
	if e.Skill != "" {
		parts = append(parts, fmt.Sprintf("skill=%s", e.Skill))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "skill error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("skill error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SkillError) Is(target error) bool {
	if _, ok := target.(*SkillError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "abc123")
//	fmt.Println(err) // "session 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("prompt cannot be empty")
//	err = err.WithField("prompt").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var mawErr MawError
	if As(err, &mawErr) {
		return mawErr.IsRetryable()
	}

	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to
// end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var mawErr MawError
	if As(err, &mawErr) {
		return mawErr.IsUserFacing()
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement MawError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var mawErr MawError
	if As(err, &mawErr) {
		return mawErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
