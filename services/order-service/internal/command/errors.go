package command

import (
	"errors"
	"fmt"
)

// ErrNotFound means a non-creation command targeted an aggregate with no
// event stream.
var ErrNotFound = errors.New("order not found")

// PersistenceError wraps database failures that left no partial state behind
// (the append is all-or-nothing), so callers may safely retry.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
