package simulator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/vigil/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the session simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Vigil Session Simulation Tool
=============================

Drives synthetic proctoring sessions against a running vigil engine: genuine
candidates, wandering-gaze candidates, and impostors with foreign facial
geometry. Verifies each persona ends in the expected state.

Usage:
  go run cmd/test-sessions/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -sessions int
        Number of sessions per persona (default 3)
  -workers int
        Number of concurrent workers (default CPU cores)
  -timeout duration
        HTTP request timeout (default 30s)
  -run-for duration
        How long each session streams frames (default 30s)
  -frame-interval duration
        Gap between frames (default 500ms)
  -samples int
        Landmark sets submitted at calibration (default 12)
  -output string
        Output file for outcomes (default: session_outcomes_TIMESTAMP.json)
  -log string
        Log file for simulation output (default: simulation_log_TIMESTAMP.log)
  -keep
        Keep sessions registered after the run
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/test-sessions/main.go

  # Longer sessions against a remote engine
  go run cmd/test-sessions/main.go -url http://vigil:9080 -run-for 60s

  # Single session per persona, verbose
  go run cmd/test-sessions/main.go -sessions 1 -verbose
`)
}
