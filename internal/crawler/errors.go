package crawler

import (
	"errors"
	"fmt"
)

// ErrSessionBudget signals that the per-run ceiling on gated actions was
// reached. It is an expected, non-error termination: phases catch it and
// return their partial results instead of failing the run.
var ErrSessionBudget = errors.New("session action budget exhausted")

// RecoverableError marks a transient fetch failure (timeout, temporary
// block page). The detail phase retries these a bounded number of times
// before recording a failure.
type RecoverableError struct {
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RecoverableError) Error() string {
	return fmt.Sprintf("recoverable fetch error: %v", e.Err)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// Recoverable wraps err as a RecoverableError.
func Recoverable(err error) error {
	return &RecoverableError{Err: err}
}

// FatalError marks a permanent fetch failure (listing removed, page
// irreparably malformed). It is recorded as a failure immediately, with
// no retry.
type FatalError struct {
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal fetch error: %v", e.Err)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a FatalError.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// IsRecoverable reports whether err is (or wraps) a RecoverableError.
func IsRecoverable(err error) bool {
	var target *RecoverableError
	return errors.As(err, &target)
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}
