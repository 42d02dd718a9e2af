package identity

import "errors"

// Sentinel kinds for identity errors.
var (
	// ErrUnavailable means the landmark set lacks the points (or the scale)
	// needed to build a feature vector. Degenerate input, not a fault.
	ErrUnavailable = errors.New("feature unavailable")

	// ErrInsufficientSamples means calibration ended with fewer valid
	// samples than the configured minimum. Recoverable: retry calibration.
	ErrInsufficientSamples = errors.New("insufficient calibration samples")

	// ErrSchemaMismatch means a vector and a baseline were built with
	// different feature schemas and cannot be compared.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)
