// Package errors provides centralized error definitions and error handling utilities
// for the test-run pipeline. It defines sentinel errors, typed errors carrying
// pipeline and remote-task context, and classification helpers.
//
// # Error Types
//
// Domain-specific errors:
//   - PipelineError: a stage of a pipeline run failed (execution failures)
//   - RuntimeError: a call to the remote execution backend failed
//
// Semantic errors:
//   - NotFoundError: a pipeline or form is not registered
//   - ValidationError: invalid input values or configuration
//
// # Usage
//
//	err := errors.NewPipelineError("execute", cause).WithPipelineID(id)
//	if errors.Is(err, errors.ErrPipelineStarted) { ... }
//
//	var rtErr *errors.RuntimeError
//	if errors.As(err, &rtErr) && rtErr.IsRetryable() { ... }
//
// # Propagation
//
// Validation failures never surface as errors from a pipeline run; they cancel
// the run instead. Execution failures are returned from Start. Report
// failures are logged and retried by the progress loop.
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

// Pipeline-related sentinel errors
var (
	// ErrPipelineStarted indicates Start was called on a pipeline that is not idle.
	ErrPipelineStarted = New("pipeline already started")
	// ErrPipelineInitialized indicates Init was called twice on the same pipeline.
	ErrPipelineInitialized = New("pipeline already initialized")
	// ErrInvalidTransition indicates a status change that skips a required predecessor.
	ErrInvalidTransition = New("invalid pipeline status transition")
	// ErrHookRegistered indicates a second execute or progress hook was registered.
	ErrHookRegistered = New("stage hook already registered")
	// ErrPipelineNotFound indicates that a pipeline id is not registered.
	ErrPipelineNotFound = New("pipeline not found")
)

// Remote and form sentinel errors
var (
	// ErrReportUnavailable indicates a task report call returned no result.
	ErrReportUnavailable = New("task report unavailable")
	// ErrFormNotFound indicates that a form id is not registered.
	ErrFormNotFound = New("form not found")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// PipelineError represents a failure inside a pipeline stage.
//
// Example:
//
//	err := errors.NewPipelineError("execute", cause).WithPipelineID("p-1")
//	fmt.Println(err) // "pipeline error [pipeline=p-1, stage=execute]: execute: <cause>"
type PipelineError struct {
	PipelineID string
	Stage      string
	cause      error
}

// NewPipelineError creates a PipelineError for the given stage.
func NewPipelineError(stage string, cause error) *PipelineError {
	return &PipelineError{Stage: stage, cause: cause}
}

// WithPipelineID adds the pipeline id to the error context.
func (e *PipelineError) WithPipelineID(id string) *PipelineError {
	e.PipelineID = id
	return e
}

// Error returns the formatted error message.
func (e *PipelineError) Error() string {
	var parts []string
	if e.PipelineID != "" {
		parts = append(parts, fmt.Sprintf("pipeline=%s", e.PipelineID))
	}
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}

	prefix := "pipeline error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("pipeline error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.cause
}

// RuntimeError represents a failed call to the remote execution backend.
type RuntimeError struct {
	Operation  string // TaskValidate, TaskRun, TaskReport, TaskCancel
	TaskID     string
	StatusCode int // HTTP status, 0 for transport failures
	cause      error
}

// NewRuntimeError creates a RuntimeError for the named operation.
func NewRuntimeError(operation string, cause error) *RuntimeError {
	return &RuntimeError{Operation: operation, cause: cause}
}

// WithTaskID adds the remote task id to the error context.
func (e *RuntimeError) WithTaskID(id string) *RuntimeError {
	e.TaskID = id
	return e
}

// WithStatusCode records the HTTP status returned by the backend.
func (e *RuntimeError) WithStatusCode(code int) *RuntimeError {
	e.StatusCode = code
	return e
}

// IsRetryable reports whether the failure is transient: transport errors and
// 5xx responses are, 4xx responses are not.
func (e *RuntimeError) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// Error returns the formatted error message.
func (e *RuntimeError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	prefix := "runtime error: " + e.Operation
	if len(parts) > 0 {
		prefix = fmt.Sprintf("runtime error [%s]: %s", strings.Join(parts, ", "), e.Operation)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError indicates that a registered resource could not be found.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
	sentinel     error
}

// NewNotFoundError creates a NotFoundError. resourceType is "pipeline" or
// "form"; errors.Is matches the corresponding sentinel.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	e := &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
	switch resourceType {
	case "pipeline":
		e.sentinel = ErrPipelineNotFound
	case "form":
		e.sentinel = ErrFormNotFound
	}
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
}

// Is matches the sentinel for the resource type.
func (e *NotFoundError) Is(target error) bool {
	return e.sentinel != nil && target == e.sentinel
}

// ValidationError represents invalid user input. Its message is safe to show
// to users.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// WithField sets the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is reports ErrInvalidInput as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if err, or any error it wraps, is a transient
// failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rtErr *RuntimeError
	if As(err, &rtErr) {
		return rtErr.IsRetryable()
	}
	return Is(err, ErrReportUnavailable)
}

// IsUserFacing returns true if the error message is safe to display to users
// without further translation.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var valErr *ValidationError
	if As(err, &valErr) {
		return true
	}
	var nfErr *NotFoundError
	return As(err, &nfErr)
}

// Wrap adds context to an error. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
