package sdk

import (
	"errors"
	"fmt"
)

// Sentinel errors for common engine error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNotStarted indicates an operation was attempted before Start or
	// after Shutdown.
	ErrNotStarted = errors.New("manager not started")

	// ErrInvalidAgent indicates a nil or structurally invalid agent was
	// passed to an enhancement operation.
	ErrInvalidAgent = errors.New("invalid agent")

	// ErrTaskNotFound indicates the requested enhancement task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskFinished indicates a cancel was attempted on a task that has
	// already completed, failed, or been cancelled.
	ErrTaskFinished = errors.New("task already finished")

	// ErrInvalidConfig indicates the provided configuration is invalid or
	// incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where a resource was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindExecution represents errors that occur during execution.
	KindExecution = "execution"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindInternal represents internal engine errors.
	KindInternal = "internal"
)

// EngineError is a structured error type that wraps underlying errors
// with additional context about the operation that failed and the
// category of error.
//
// EngineError implements the error interface and supports error
// unwrapping, making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &EngineError{
//		Op:   "Manager.EnhanceAgent",
//		Kind: KindValidation,
//		Err:  ErrInvalidAgent,
//	}
type EngineError struct {
	// Op is the operation that failed (e.g., "Manager.Retrieve").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include task ids, agent ids, or other debugging information.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error
// message that includes the operation, kind, and underlying error.
func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sdk: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("sdk: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("sdk: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and
// errors.As() to work correctly with wrapped errors.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for EngineError, allowing comparison
// based on the underlying error or another EngineError's Op and Kind.
func (e *EngineError) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*EngineError); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
		return false
	}

	return errors.Is(e.Err, target)
}

// newError builds an EngineError for an operation.
func newError(op, kind string, err error) *EngineError {
	return &EngineError{Op: op, Kind: kind, Err: err}
}
