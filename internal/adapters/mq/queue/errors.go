package queue

import "errors"

// Sentinel kinds for mailbox errors.
var (
	ErrClosed = errors.New("mailbox closed")
)
