package model

import "github.com/rotisserie/eris"

// Domain error taxonomy. Callers match with eris.Is and translate to exit
// codes or HTTP statuses at the boundary. None of these are retried.
var (
	// ErrValidation marks malformed or missing required input. Rejected
	// before any state mutation.
	ErrValidation = eris.New("validation error")

	// ErrInvariantViolation marks an operation that would corrupt recorded
	// history (second active thesis, evidence on a terminal hypothesis,
	// editing a superseded guidance record). Existing state is untouched.
	ErrInvariantViolation = eris.New("invariant violation")

	// ErrNotFound marks a reference to a nonexistent company, thesis,
	// hypothesis, or criterion.
	ErrNotFound = eris.New("not found")

	// ErrDuplicateActiveThesis is returned by thesis creation when the
	// company already has an active thesis.
	ErrDuplicateActiveThesis = eris.New("duplicate active thesis")

	// ErrAlreadyClosed is returned when closing a thesis that is not active.
	ErrAlreadyClosed = eris.New("thesis already closed")
)
