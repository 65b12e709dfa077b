package graph

import "errors"

// ErrEntityNotFound is returned by AddObservations when a target entity does
// not exist. Every other operation treats missing entities as a silent no-op.
var ErrEntityNotFound = errors.New("entity not found")
