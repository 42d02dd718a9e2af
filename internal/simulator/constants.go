package simulator

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusCreated  = 201
	StatusAccepted = 202
)

// Runner configuration constants.
const (
	// SettleDelay gives the drift ticker time to fill its window after the
	// last frame before statuses are read.
	SettleDelay          = 5 * time.Second
	PercentageMultiplier = 100
)
