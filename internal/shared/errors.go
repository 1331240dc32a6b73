package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPeriodLocked indicates the consolidation period no longer accepts writes.
	ErrPeriodLocked = errors.New("period locked")
	// ErrInvalidTransition indicates a lifecycle change not allowed by policy.
	ErrInvalidTransition = errors.New("invalid status transition")
)
