package services

import "errors"

// Workflow error kinds. Handlers map these onto HTTP statuses:
// validation 400, forbidden 403, not found 404, conflict 409.
// Not-found conditions reuse store.ErrNotFound.
var (
	// ErrForbidden means the actor lacks the privilege for the
	// requested transition or decision.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation means a required field is missing or malformed,
	// e.g. rejecting a property without notes.
	ErrValidation = errors.New("validation failed")

	// ErrConflict means the requested transition is invalid given the
	// current state, e.g. deciding an already-decided property or a
	// tenant assignment without lease terms.
	ErrConflict = errors.New("conflict")
)
