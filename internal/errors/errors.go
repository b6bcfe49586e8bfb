// Package errors provides centralized error definitions and error handling
// utilities for the swarm codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: errors related to session management
//   - BundleError: errors related to bundle/retry state
//   - AgentError: errors raised while running an agent stage
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or configuration
//   - NeedsHumanError: a stage needs a person to act before work can continue
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSessionError("failed to load session", errors.ErrSessionNotFound)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSessionNotFound) { ... }
//	if errors.IsNeedsHuman(err) { ... } // pause for a person, not a crash
//	if errors.IsRetryable(err) { ... }  // eligible for bundle-based resume
package errors

import (
	"errors"
	"fmt"
	"strings"
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

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionNotFound indicates that a session could not be found.
	// Missing and unparseable session files are deliberately indistinguishable.
	ErrSessionNotFound = New("session not found")
	// ErrNoActiveSession indicates that no session is currently active.
	ErrNoActiveSession = New("no active session")
	// ErrTaskNotFound indicates that a task could not be found in its session.
	ErrTaskNotFound = New("task not found")
	// ErrSessionCompleted indicates the session has already run to completion.
	ErrSessionCompleted = New("session already completed")
)

// Bundle-related sentinel errors
var (
	// ErrBundleNotFound indicates that a bundle could not be found in the manifest.
	ErrBundleNotFound = New("bundle not found")
	// ErrRetriesExhausted indicates a bundle reached its retry ceiling.
	ErrRetriesExhausted = New("bundle retries exhausted")
	// ErrLockTimeout indicates the manifest lock could not be acquired in time.
	ErrLockTimeout = New("lock acquisition timed out")
)

// Agent-related sentinel errors
var (
	// ErrUnknownRole indicates a workflow stage references a role that has
	// no registered agent configuration.
	ErrUnknownRole = New("unknown agent role")
	// ErrRoleDisabled indicates the referenced role is explicitly disabled.
	ErrRoleDisabled = New("agent role disabled")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents errors related to session management.
//
// Example:
//
//	err := errors.NewSessionError("failed to load session", errors.ErrSessionNotFound)
//	err = err.WithSessionID("swarm_1756710000000_a1b2c3d4e")
type SessionError struct {
	baseError
	SessionID string
	TaskID    string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithTaskID adds a task ID to the error context.
func (e *SessionError) WithTaskID(id string) *SessionError {
	e.TaskID = id
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
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

// BundleError represents errors related to bundle/retry state management.
type BundleError struct {
	baseError
	BundleID string
}

// NewBundleError creates a new BundleError.
func NewBundleError(message string, cause error) *BundleError {
	return &BundleError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithBundleID adds a bundle ID to the error context.
func (e *BundleError) WithBundleID(id string) *BundleError {
	e.BundleID = id
	return e
}

// Error returns the formatted error message.
func (e *BundleError) Error() string {
	prefix := "bundle error"
	if e.BundleID != "" {
		prefix = fmt.Sprintf("bundle error [bundle=%s]", e.BundleID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *BundleError) Is(target error) bool {
	if _, ok := target.(*BundleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AgentError represents an error raised while running an agent stage.
// Retryable agent errors are converted into bundles by the orchestrator so
// the stage can be resumed later.
type AgentError struct {
	baseError
	Agent string
	Task  string
}

// NewAgentError creates a new AgentError.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{message: message, cause: cause},
	}
}

// WithAgent adds the agent role to the error context.
func (e *AgentError) WithAgent(agent string) *AgentError {
	e.Agent = agent
	return e
}

// WithTask adds the task ID to the error context.
func (e *AgentError) WithTask(task string) *AgentError {
	e.Task = task
	return e
}

// WithRetryable marks the error as retryable via the bundle mechanism.
func (e *AgentError) WithRetryable(r bool) *AgentError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	var parts []string
	if e.Agent != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.Agent))
	}
	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.Task))
	}

	prefix := "agent error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("agent error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError indicates invalid input, state, or configuration.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{message: message},
	}
}

// WithField adds the offending field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the offending value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds an underlying cause to the error.
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
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// NeedsHumanError
// -----------------------------------------------------------------------------

// NeedsHumanError signals that an agent stage cannot proceed without a
// person acting first. It is an outcome, not a failure: CLI entry points
// must exit 0 when they encounter it so external orchestration does not
// mistake "paused, waiting for a person" for "crashed".
type NeedsHumanError struct {
	Agent  string
	Task   string
	Reason string
	Action string
	Files  []string
}

// NewNeedsHumanError creates a new NeedsHumanError.
func NewNeedsHumanError(agent, task, reason, action string) *NeedsHumanError {
	return &NeedsHumanError{
		Agent:  agent,
		Task:   task,
		Reason: reason,
		Action: action,
	}
}

// WithFiles adds the affected files to the error context.
func (e *NeedsHumanError) WithFiles(files ...string) *NeedsHumanError {
	e.Files = append(e.Files, files...)
	return e
}

// Error returns the formatted error message.
func (e *NeedsHumanError) Error() string {
	return fmt.Sprintf("needs human input [agent=%s, task=%s]: %s", e.Agent, e.Task, e.Reason)
}

// Is checks if this error matches the target.
func (e *NeedsHumanError) Is(target error) bool {
	_, ok := target.(*NeedsHumanError)
	return ok
}

// IsNeedsHuman reports whether err (or anything it wraps) is a NeedsHumanError.
func IsNeedsHuman(err error) bool {
	var nh *NeedsHumanError
	return As(err, &nh)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// retryable is implemented by errors that know whether a retry may succeed.
type retryable interface {
	IsRetryable() bool
}

// IsRetryable returns true if the error is transient and the operation may
// succeed on retry. Retryable agent failures are converted into bundles.
func IsRetryable(err error) bool {
	var r retryable
	if As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// -----------------------------------------------------------------------------
// Wrapping Helpers
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional message. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
