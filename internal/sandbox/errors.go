package sandbox

import (
	"errors"
	"fmt"
)

// ExecutionError reports the statement that stopped a run.
type ExecutionError struct {
	InstanceID string
	Cause      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed at %q: %v", e.InstanceID, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// CancelledError reports a run stopped at a statement boundary. After is the
// number of statements that completed.
type CancelledError struct {
	After int
	Err   error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled after %d statements: %v", e.After, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// IsExecutionError returns true if err wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var e *ExecutionError
	return errors.As(err, &e)
}

// IsCancelled returns true if err wraps a CancelledError.
func IsCancelled(err error) bool {
	var e *CancelledError
	return errors.As(err, &e)
}
