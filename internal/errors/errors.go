// Package errors provides centralized error definitions and error handling
// utilities for the plugspan codebase. It defines the lifecycle error
// taxonomy, error constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
// Lifecycle errors map to the phase of a plugin's lifespan in which they
// occurred:
//   - SetupError: a plugin's setup phase failed
//   - TaskError: a plugin's background task failed outside of cancellation
//   - TeardownError: a plugin's teardown phase failed
//   - InvalidStateError: programming misuse of a session or registry
//     (for example, teardown before setup completed)
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewSetupError("countdown", cause)
//	err := errors.NewInvalidStateError("Teardown", "NotStarted", nil)
//
// Checking errors:
//
//	if errors.IsSetup(err) { ... }
//
//	var taskErr *errors.TaskError
//	if errors.As(err, &taskErr) { ... }
//
// # Error Precedence
//
// A run surfaces exactly one representative error. First selects it:
// the earliest non-nil error wins, and callers order candidates setup,
// task, teardown per the shutdown reporting policy.
package errors

import (
	"errors"
	"fmt"
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
	// ErrSetupNotComplete indicates teardown was requested for a session
	// whose setup never completed.
	ErrSetupNotComplete = New("setup has not completed")
	// ErrSetupAlreadyRun indicates setup was invoked more than once.
	ErrSetupAlreadyRun = New("setup already ran")
	// ErrTeardownDone indicates teardown was invoked more than once.
	ErrTeardownDone = New("teardown already ran")
)

// Registry-related sentinel errors
var (
	// ErrRegistryClosed indicates a schedule attempt after the registry
	// was released.
	ErrRegistryClosed = New("task registry is closed")
	// ErrDuplicateTask indicates two tasks were scheduled under one name.
	ErrDuplicateTask = New("task already scheduled under this name")
)

// Shutdown-related sentinel errors
var (
	// ErrForcedAbort indicates the shutdown grace period elapsed before
	// every task acknowledged cancellation.
	ErrForcedAbort = New("shutdown grace period elapsed")
	// ErrTaskPanicked indicates a scheduled task panicked.
	ErrTaskPanicked = New("task panicked")
)

// -----------------------------------------------------------------------------
// Lifecycle Errors
// -----------------------------------------------------------------------------

// SetupError represents a failure in a plugin's setup phase.
// It aborts the remaining setups and the whole run.
type SetupError struct {
	Plugin string
	Err    error
}

// NewSetupError creates a SetupError for the named plugin.
func NewSetupError(plugin string, cause error) *SetupError {
	return &SetupError{Plugin: plugin, Err: cause}
}

// Error returns the formatted error message.
func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed [plugin=%s]: %v", e.Plugin, e.Err)
}

// Unwrap returns the underlying error.
func (e *SetupError) Unwrap() error { return e.Err }

// TaskError represents a scheduled task failing for a reason other than
// cancellation. The orchestrator treats the first observed TaskError as a
// termination signal.
type TaskError struct {
	Plugin string
	Err    error
}

// NewTaskError creates a TaskError for the named plugin.
func NewTaskError(plugin string, cause error) *TaskError {
	return &TaskError{Plugin: plugin, Err: cause}
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task failed [plugin=%s]: %v", e.Plugin, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error { return e.Err }

// TeardownError represents a failure in a plugin's teardown phase.
// It is recorded but never prevents the remaining teardowns from running.
type TeardownError struct {
	Plugin string
	Err    error
}

// NewTeardownError creates a TeardownError for the named plugin.
func NewTeardownError(plugin string, cause error) *TeardownError {
	return &TeardownError{Plugin: plugin, Err: cause}
}

// Error returns the formatted error message.
func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown failed [plugin=%s]: %v", e.Plugin, e.Err)
}

// Unwrap returns the underlying error.
func (e *TeardownError) Unwrap() error { return e.Err }

// InvalidStateError represents programming misuse: an operation invoked on
// a session or registry in a state that cannot accept it.
type InvalidStateError struct {
	Op    string
	State string
	Err   error
}

// NewInvalidStateError creates an InvalidStateError for the given
// operation and the state it found.
func NewInvalidStateError(op, state string, cause error) *InvalidStateError {
	return &InvalidStateError{Op: op, State: state, Err: cause}
}

// Error returns the formatted error message.
func (e *InvalidStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid state [op=%s, state=%s]: %v", e.Op, e.State, e.Err)
	}
	return fmt.Sprintf("invalid state [op=%s, state=%s]", e.Op, e.State)
}

// Unwrap returns the underlying error.
func (e *InvalidStateError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsSetup returns true if err is or wraps a SetupError.
func IsSetup(err error) bool {
	var target *SetupError
	return As(err, &target)
}

// IsTask returns true if err is or wraps a TaskError.
func IsTask(err error) bool {
	var target *TaskError
	return As(err, &target)
}

// IsTeardown returns true if err is or wraps a TeardownError.
func IsTeardown(err error) bool {
	var target *TeardownError
	return As(err, &target)
}

// IsInvalidState returns true if err is or wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return As(err, &target)
}

// First returns the first non-nil error from the candidates, or nil if
// every candidate is nil. Callers pass candidates in reporting-precedence
// order (setup before task before teardown).
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
