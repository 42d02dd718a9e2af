package simulator

import "time"

// Persona selects the behavior of a simulated candidate.
type Persona string

// Personas, from honest to hostile.
const (
	// PersonaGenuine is the calibrated candidate looking at the screen.
	PersonaGenuine Persona = "genuine"

	// PersonaWanderer keeps the calibrated identity but stares off-screen,
	// driving the behavioral suspicion counter up.
	PersonaWanderer Persona = "wanderer"

	// PersonaImpostor has different facial geometry than the calibrated
	// baseline and should trip the identity drift watchdog.
	PersonaImpostor Persona = "impostor"
)

// Config holds configuration for the session simulation.
type Config struct {
	BaseURL            string        // Base URL of the service
	NumSessions        int           // Number of sessions per persona
	Workers            int           // Number of concurrent workers
	Timeout            time.Duration // HTTP request timeout
	FrameInterval      time.Duration // Gap between submitted frames
	RunFor             time.Duration // How long each session streams frames
	CalibrationSamples int           // Landmark sets sent at calibration
	OutputFile         string        // Output file for final statuses
	LogFile            string        // Log file for simulation output
	Verbose            bool          // Enable verbose logging
	KeepSessions       bool          // Skip the final DELETE per session
}

// SessionOutcome captures the end state of one simulated session.
type SessionOutcome struct {
	Token        string  `json:"token"`
	Persona      Persona `json:"persona"`
	WarningLevel string  `json:"warning_level"`
	DriftStatus  string  `json:"drift_status"`
	ExposedLevel string  `json:"exposed_level"`
	Suspicion    int     `json:"suspicion"`
	Violations   int     `json:"violation_count"`
	Passed       bool    `json:"passed"`
	Reason       string  `json:"reason,omitempty"`
}

// Stats holds simulation statistics.
type Stats struct {
	SessionsStarted     int
	SessionsCalibrated  int
	FramesSubmitted     int
	FramesDuplicate     int
	FramesFailed        int
	VerificationsPassed int
	VerificationsFailed int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
