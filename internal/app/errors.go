package app

import "errors"

// Sentinel kinds for registry errors.
var (
	// ErrSessionNotFound is returned for operations on unregistered
	// tokens. Callers must not silently create state on typo tokens.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)
