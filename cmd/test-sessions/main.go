package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/vigil/internal/simulator"
)

// Default configuration constants.
const (
	defaultSessions      = 3
	defaultTimeout       = 30 * time.Second
	defaultRunFor        = 30 * time.Second
	defaultFrameInterval = 500 * time.Millisecond
	defaultSamples       = 12
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numSessions   = flag.Int("sessions", defaultSessions, "Number of sessions per persona")
		workers       = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		runFor        = flag.Duration("run-for", defaultRunFor, "How long each session streams frames")
		frameInterval = flag.Duration("frame-interval", defaultFrameInterval, "Gap between frames")
		samples       = flag.Int("samples", defaultSamples, "Landmark sets submitted at calibration")
		outputFile    = flag.String("output", "", "Output file for outcomes (default: session_outcomes_TIMESTAMP.json)")
		logFile       = flag.String("log", "", "Log file for simulation output (default: simulation_log_TIMESTAMP.log)")
		keep          = flag.Bool("keep", false, "Keep sessions registered after the run")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
		help          = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	// Setup logging
	if err := simulator.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simulator.Config{
		BaseURL:            *baseURL,
		NumSessions:        *numSessions,
		Workers:            *workers,
		Timeout:            *timeout,
		FrameInterval:      *frameInterval,
		RunFor:             *runFor,
		CalibrationSamples: *samples,
		OutputFile:         *outputFile,
		LogFile:            *logFile,
		Verbose:            *verbose,
		KeepSessions:       *keep,
	}

	// Run the simulation
	if err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
