package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("calibration record not found")
	ErrCorrupt  = errors.New("calibration record corrupt")
)
