package report

import "errors"

// Sentinel kinds for reporting errors.
var (
	ErrSinkUnavailable = errors.New("violation sink unavailable")
	ErrSinkRejected    = errors.New("violation sink rejected record")
)
