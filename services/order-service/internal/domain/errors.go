package domain

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks a business rule rejection. Use errors.Is to
// classify; the concrete *InvariantViolationError carries the detail.
var ErrInvariantViolation = errors.New("domain invariant violation")

type InvariantViolationError struct {
	Intent string
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Intent, e.Reason)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

func invariant(intent, format string, args ...any) error {
	return &InvariantViolationError{Intent: intent, Reason: fmt.Sprintf(format, args...)}
}
