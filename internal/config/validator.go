package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration value.
type ValidationError struct {
	Field   string // Dotted config key, e.g. "backends.codex.default_sandbox"
	Value   any    // The offending value
	Message string // What is wrong with it
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates all validation failures found in a Config.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
}

var validSandboxes = map[string]bool{
	"read-only":          true,
	"workspace-write":    true,
	"danger-full-access": true,
}

var validBackends = map[string]bool{
	"claude": true,
	"codex":  true,
	"gemini": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the entire configuration and returns all problems found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.Backends.validate()...)
	errs = append(errs, c.State.validate()...)
	errs = append(errs, c.Ralph.validate()...)
	errs = append(errs, c.Logging.validate()...)
	return errs
}

func (b *BackendsConfig) validate() []ValidationError {
	var errs []ValidationError

	if !validBackends[strings.ToLower(b.Default)] {
		errs = append(errs, ValidationError{
			Field:   "backends.default",
			Value:   b.Default,
			Message: "must be one of: claude, codex, gemini",
		})
	}

	errs = append(errs, b.Codex.validate("backends.codex")...)
	errs = append(errs, b.Gemini.validate("backends.gemini")...)
	return errs
}

func (b *BridgeBackendConfig) validate(prefix string) []ValidationError {
	var errs []ValidationError

	if b.DefaultSandbox != "" && !validSandboxes[b.DefaultSandbox] {
		errs = append(errs, ValidationError{
			Field:   prefix + ".default_sandbox",
			Value:   b.DefaultSandbox,
			Message: "must be one of: read-only, workspace-write, danger-full-access",
		})
	}

	if b.MaxConcurrent < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".max_concurrent",
			Value:   b.MaxConcurrent,
			Message: "must be >= 0 (0 means unlimited)",
		})
	}

	if b.Enabled && b.Interpreter == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".interpreter",
			Value:   b.Interpreter,
			Message: "must not be empty for an enabled bridge backend",
		})
	}

	return errs
}

func (s *StateConfig) validate() []ValidationError {
	var errs []ValidationError
	if s.Root == "" {
		errs = append(errs, ValidationError{
			Field:   "state.root",
			Value:   s.Root,
			Message: "must not be empty",
		})
	}
	return errs
}

func (r *RalphConfig) validate() []ValidationError {
	var errs []ValidationError

	if r.MaxIterations < 1 {
		errs = append(errs, ValidationError{
			Field:   "ralph.max_iterations",
			Value:   r.MaxIterations,
			Message: "must be >= 1",
		})
	}

	if r.DelaySeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "ralph.delay_seconds",
			Value:   r.DelaySeconds,
			Message: "must be >= 0",
		})
	}

	return errs
}

func (l *LoggingConfig) validate() []ValidationError {
	var errs []ValidationError
	if !validLogLevels[strings.ToLower(l.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   l.Level,
			Message: "must be one of: debug, info, warn, error",
		})
	}
	return errs
}
