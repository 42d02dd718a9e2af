package simulator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/vigil/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// verifyOutcomes checks each session's end state against what its persona
// should have produced.
func verifyOutcomes(ctx context.Context, config *Config, outcomes []SessionOutcome, stats *Stats) error {
	log.Println("verifying outcomes...")

	if len(outcomes) == 0 {
		return fmt.Errorf("no outcomes to verify")
	}

	for i := range outcomes {
		o := &outcomes[i]
		if o.Reason != "" {
			// Session never reached a final status.
			stats.VerificationsFailed++
			log.Printf("FAIL %s (%s): %s", o.Token, o.Persona, o.Reason)
			continue
		}

		passed, reason := expectationFor(o)
		o.Passed = passed
		if passed {
			stats.VerificationsPassed++
			if config.Verbose {
				log.Printf("PASS %s (%s): level=%s drift=%s suspicion=%d",
					o.Token, o.Persona, o.WarningLevel, o.DriftStatus, o.Suspicion)
			}
		} else {
			o.Reason = reason
			stats.VerificationsFailed++
			log.Printf("FAIL %s (%s): %s (level=%s drift=%s suspicion=%d violations=%d)",
				o.Token, o.Persona, reason, o.WarningLevel, o.DriftStatus, o.Suspicion, o.Violations)
		}
	}

	logger.Get().Info(ctx, "verification completed",
		logger.Int("passed", stats.VerificationsPassed),
		logger.Int("failed", stats.VerificationsFailed))

	if stats.VerificationsFailed > 0 {
		return fmt.Errorf("%d of %d sessions failed verification",
			stats.VerificationsFailed, len(outcomes))
	}
	return nil
}

// expectationFor encodes what each persona should look like at the end of a
// run that was long enough for the drift window and the counter to converge.
func expectationFor(o *SessionOutcome) (bool, string) {
	switch o.Persona {
	case PersonaGenuine:
		if o.DriftStatus == "impersonation_suspected" {
			return false, "genuine candidate flagged as impostor"
		}
		if o.WarningLevel == "warning" {
			return false, "genuine candidate reached warning level"
		}
		return true, ""
	case PersonaWanderer:
		if o.DriftStatus == "impersonation_suspected" {
			return false, "wanderer flagged as impostor"
		}
		if o.WarningLevel != "warning" {
			return false, "wanderer never reached warning level"
		}
		return true, ""
	case PersonaImpostor:
		if o.DriftStatus != "impersonation_suspected" {
			return false, "impostor never tripped the drift watchdog"
		}
		if o.Violations == 0 {
			return false, "impostor tripped drift but no violation was recorded"
		}
		return true, ""
	default:
		return false, "unknown persona"
	}
}

// saveOutcomesToFile saves the session outcomes to a JSON file.
func saveOutcomesToFile(ctx context.Context, config *Config, outcomes []SessionOutcome) error {
	if len(outcomes) == 0 {
		return fmt.Errorf("no outcomes to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "session_outcomes_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := marshalJSON(outcomes)
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "outcomes saved to file", logger.String("filename", filename))
	return nil
}
