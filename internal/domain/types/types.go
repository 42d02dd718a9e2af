// Package types contains common types used across the application
package types

import "github.com/okian/vigil/internal/domain/behavior"

// ExposedLevel is the externally reported severity, combining the behavioral
// warning level with the identity-drift verdict.
type ExposedLevel string

// Exposed severity levels, ordered.
const (
	ExposedNone   ExposedLevel = "none"
	ExposedLow    ExposedLevel = "low"
	ExposedMedium ExposedLevel = "medium"
	ExposedHigh   ExposedLevel = "high"
)

// SessionStatus is the read shape returned by session status queries.
type SessionStatus struct {
	Token          string       `json:"token"`
	Calibrated     bool         `json:"calibrated"`
	Detecting      bool         `json:"detecting"`
	Suspicion      int          `json:"suspicion"`
	WarningLevel   string       `json:"warning_level"`
	DriftStatus    string       `json:"drift_status"`
	ExposedLevel   ExposedLevel `json:"exposed_level"`
	ViolationCount int          `json:"violation_count"`
}

// CalibrationResult reports what a calibration attempt collected.
type CalibrationResult struct {
	Samples    int  `json:"samples"`
	Calibrated bool `json:"calibrated"`
}

// StartOverrides carries the per-session policy overrides accepted at
// detection start. Nil pointer fields fall back to process configuration.
type StartOverrides struct {
	Checks           *behavior.Checks `json:"checks,omitempty"`
	CautionThreshold *int             `json:"caution_threshold,omitempty"`
	WarningThreshold *int             `json:"warning_threshold,omitempty"`
}
