package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when an update carries a stale version
// token, or when a state-guarded update (e.g. deciding a property that
// is no longer pending) matches no row.
var ErrVersionConflict = errors.New("version conflict")
