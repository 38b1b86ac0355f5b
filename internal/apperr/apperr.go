// Package apperr holds the error kinds shared by the service and transport layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing or malformed input. Nothing was mutated.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks a requester without permission for the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvariantViolation marks a write that would break a stored invariant.
	// The write is aborted and prior state is left unchanged.
	ErrInvariantViolation = errors.New("invariant violation")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// Kind returns the sentinel err wraps, or nil when it is none of them.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrUnauthorized, ErrNotFound, ErrInvariantViolation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
