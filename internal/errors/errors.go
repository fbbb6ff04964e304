package errors

import (
	"errors"
	"fmt"
)

// Common error types shared across the callback packages
var (
	// Configuration errors
	ErrMissingURL     = errors.New("authorization URL is required")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidTimeout = errors.New("invalid timeout")
	ErrEmptyCommand   = errors.New("launch command is empty")

	// Callback errors
	ErrStateMismatch = errors.New("state parameter mismatch")

	// Token errors
	ErrMissingIDToken = errors.New("missing id_token in token response")
	ErrInvalidToken   = errors.New("invalid token")
	ErrNonceMismatch  = errors.New("nonce mismatch")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
