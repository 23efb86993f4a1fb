package domain

import "errors"

// Error taxonomy for registry and orchestrator operations. None of these is
// process-fatal; each maps to a client-visible error or rejection event.
var (
	// ErrNotFound signals an unknown connection or target id
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput signals missing or malformed location/profile fields
	ErrInvalidInput = errors.New("invalid input")

	// ErrDenied signals a lost allocation race or a busy target; the caller
	// may retry with a fresh candidate
	ErrDenied = errors.New("denied")
)
