// Package config defines process configuration and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"github.com/okian/vigil/internal/domain/behavior"
)

// DriftConfig tunes the identity drift watchdog.
type DriftConfig struct {
	// IntervalS is the drift tick interval in seconds.
	IntervalS int `koanf:"interval_s"`

	// Window is the number of recent distances the watchdog keeps.
	Window int `koanf:"window"`

	// MidThreshold and HighThreshold split distances into pass, recheck,
	// and fail bands.
	MidThreshold  float64 `koanf:"mid_threshold"`
	HighThreshold float64 `koanf:"high_threshold"`

	// TripCount is how many high distances in the window trip a fail.
	TripCount int `koanf:"trip_count"`
}

// SuspicionConfig tunes the behavioral suspicion aggregator.
type SuspicionConfig struct {
	// Max caps the suspicion counter.
	Max int `koanf:"max"`

	// WarnStep and ClearStep move the counter per suspicious and clean
	// frame respectively.
	WarnStep  int `koanf:"warn_step"`
	ClearStep int `koanf:"clear_step"`

	// CautionThreshold and WarningThreshold map the counter to levels.
	CautionThreshold int `koanf:"caution_threshold"`
	WarningThreshold int `koanf:"warning_threshold"`
}

// CalibrationConfig tunes baseline collection.
type CalibrationConfig struct {
	// MinSamples is the minimum number of usable landmark sets.
	MinSamples int `koanf:"min_samples"`

	// BudgetMS bounds how long collection may run, in milliseconds.
	BudgetMS int `koanf:"budget_ms"`
}

// TolerancesConfig holds the behavioral deviation bands.
type TolerancesConfig struct {
	GazeH   float64 `koanf:"gaze_h"`
	GazeV   float64 `koanf:"gaze_v"`
	EyeOpen float64 `koanf:"eye_open"`
	YawDeg  float64 `koanf:"yaw_deg"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BadgerDir is the on-disk calibration store path. Empty selects the
	// in-memory store.
	BadgerDir string `koanf:"badger_dir"`

	// ReportBaseURL is the backend that receives violations and evidence.
	// Empty disables outbound reporting.
	ReportBaseURL string `koanf:"report_base_url"`

	// ReportTimeoutMS bounds each outbound report request.
	ReportTimeoutMS int `koanf:"report_timeout_ms"`

	// EvidenceMinIntervalS rate-limits evidence snapshot uploads.
	EvidenceMinIntervalS int `koanf:"evidence_min_interval_s"`

	// DedupeSize sets the size of the frame deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxMonitorLimit caps GET /monitor?limit.
	MaxMonitorLimit int `koanf:"max_monitor_limit"`

	// Drift tunes the identity watchdog.
	Drift DriftConfig `koanf:"drift"`

	// Suspicion tunes the behavioral counter.
	Suspicion SuspicionConfig `koanf:"suspicion"`

	// Checks toggles the behavioral analyses.
	Checks behavior.Checks `koanf:"checks"`

	// Tolerances sets the calibration deviation bands.
	Tolerances TolerancesConfig `koanf:"tolerances"`

	// Calibration tunes baseline collection.
	Calibration CalibrationConfig `koanf:"calibration"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		BadgerDir:            "",
		ReportBaseURL:        "",
		ReportTimeoutMS:      5_000,
		EvidenceMinIntervalS: 15,
		DedupeSize:           50_000,
		MaxMonitorLimit:      100,
		Drift: DriftConfig{
			IntervalS:     4,
			Window:        5,
			MidThreshold:  2.5,
			HighThreshold: 3.5,
			TripCount:     3,
		},
		Suspicion: SuspicionConfig{
			Max:              60,
			WarnStep:         2,
			ClearStep:        3,
			CautionThreshold: 20,
			WarningThreshold: 40,
		},
		Checks: behavior.DefaultChecks(),
		Tolerances: TolerancesConfig{
			GazeH:   0.15,
			GazeV:   0.12,
			EyeOpen: 0.35,
			YawDeg:  18.0,
		},
		Calibration: CalibrationConfig{
			MinSamples: 10,
			BudgetMS:   6_000,
		},
	}
}

// BehaviorTolerances converts the config bands into the domain type.
func (c *Config) BehaviorTolerances() behavior.Tolerances {
	return behavior.Tolerances{
		GazeH:   c.Tolerances.GazeH,
		GazeV:   c.Tolerances.GazeV,
		EyeOpen: c.Tolerances.EyeOpen,
		YawDeg:  c.Tolerances.YawDeg,
	}
}
