package dispatch

import (
	"errors"
	"fmt"
)

// ErrNoAvailableUnit is returned when no idle unit exists and no moving
// unit can pick the caller up on its route. Transient: callers may retry.
var ErrNoAvailableUnit = errors.New("no elevator currently available")

// IdempotencyConflictError reports reuse of an idempotency key with a
// different request payload.
type IdempotencyConflictError struct {
	Key string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q was already used with a different request", e.Key)
}

// UnitFaultError wraps the failure that put a unit into ERROR. It is only
// observable through task-status polling: the assignment call has already
// returned by the time the ride fails.
type UnitFaultError struct {
	UnitID int
	Err    error
}

func (e *UnitFaultError) Error() string {
	return fmt.Sprintf("unit %d faulted: %v", e.UnitID, e.Err)
}

func (e *UnitFaultError) Unwrap() error { return e.Err }
