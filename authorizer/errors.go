package authorizer

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorizationDenied is returned when the callback arrived without a usable token.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrTimeout is returned when no callback arrived before the session timeout.
	ErrTimeout = errors.New("authorization timed out")
	// ErrFailure matches every *FailureError.
	ErrFailure = errors.New("authorization failed")
	// ErrInterrupted is the cause of a failure when a termination signal stopped the session.
	ErrInterrupted = errors.New("interrupted by signal")
	// ErrSessionUsed is returned by Authorize on a session that already ran.
	ErrSessionUsed = errors.New("authorization session already used")
)

// FailureError is a generic failure of the flow. Op names the step that failed
// (listen, launch, callback, serve, wait, authorize).
type FailureError struct {
	Op  string
	Err error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFailure, e.Op, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

func (e *FailureError) Is(target error) bool {
	return target == ErrFailure
}
