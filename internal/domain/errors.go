package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrTransientStorage marks a transaction abort from the underlying
	// store. Operations are all-or-nothing, so retrying the whole call is
	// safe.
	ErrTransientStorage = errors.New("transient storage error")
)

// ValidationError reports malformed input: a missing size on a sized item,
// a non-positive quantity, an empty cart.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ConflictError reports a precondition violation such as a second open
// order for a table or an occupied transfer target. OpenOrderID carries the
// winning header's id when a create race is lost, so the caller can retry
// the same cart as an append.
type ConflictError struct {
	Reason      string
	OpenOrderID string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// ConsistencyError reports detected drift between the unit ledger and the
// normalized line-item mirror. It is logged, never silently discarded.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return e.Reason
}
