package simulator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/domain/geometry"
	"github.com/okian/vigil/internal/domain/types"
	"github.com/okian/vigil/pkg/logger"
)

// Run executes the complete session simulation: one batch of sessions per
// persona, driven concurrently against a running engine.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting vigil session simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("sessionsPerPersona", config.NumSessions),
		logger.Int("workers", config.Workers),
		logger.String("runFor", config.RunFor.String()),
		logger.String("frameInterval", config.FrameInterval.String()),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Run sessions per persona through a worker pool
	personas := []Persona{PersonaGenuine, PersonaWanderer, PersonaImpostor}
	outcomes, err := runSessions(ctx, config, personas, stats)
	if err != nil {
		return fmt.Errorf("session simulation failed: %w", err)
	}

	// Step 3: Verify outcomes against persona expectations
	if err := verifyOutcomes(ctx, config, outcomes, stats); err != nil {
		return fmt.Errorf("outcome verification failed: %w", err)
	}

	// Step 4: Save outcomes to file
	if err := saveOutcomesToFile(ctx, config, outcomes); err != nil {
		logger.Get().Warn(ctx, "failed to save outcomes to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// runSessions drives every persona's sessions through a bounded worker pool.
func runSessions(ctx context.Context, config *Config, personas []Persona, stats *Stats) ([]SessionOutcome, error) {
	total := config.NumSessions * len(personas)
	log.Printf("running %d sessions (%d per persona) with %d workers", total, config.NumSessions, config.Workers)

	type job struct {
		persona Persona
	}
	jobs := make(chan job, total)
	results := make(chan SessionOutcome, total)

	var framesSubmitted, framesDuplicate, framesFailed int64

	var wg sync.WaitGroup
	workers := config.Workers
	if workers > total {
		workers = total
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := newHTTPClient(config.Timeout)
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				outcome := runSingleSession(ctx, client, config, j.persona,
					&framesSubmitted, &framesDuplicate, &framesFailed)
				results <- outcome
			}
		}()
	}

	for _, p := range personas {
		for i := 0; i < config.NumSessions; i++ {
			jobs <- job{persona: p}
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]SessionOutcome, 0, total)
	for o := range results {
		outcomes = append(outcomes, o)
	}

	stats.SessionsStarted = len(outcomes)
	stats.FramesSubmitted = int(atomic.LoadInt64(&framesSubmitted))
	stats.FramesDuplicate = int(atomic.LoadInt64(&framesDuplicate))
	stats.FramesFailed = int(atomic.LoadInt64(&framesFailed))
	return outcomes, nil
}

// runSingleSession walks one candidate through the full lifecycle: register,
// calibrate, detect, stream frames, read the final status, tear down.
func runSingleSession(ctx context.Context, client *HTTPClient, config *Config, persona Persona,
	framesSubmitted, framesDuplicate, framesFailed *int64,
) SessionOutcome {
	token := string(persona) + "-" + uuid.NewString()
	outcome := SessionOutcome{Token: token, Persona: persona}
	base := config.BaseURL + "/sessions/" + token

	// Register
	status, err := client.postJSON(ctx, config.BaseURL+"/sessions", map[string]string{"token": token}, nil)
	if err != nil || (status != StatusCreated && status != StatusOK) {
		outcome.Reason = fmt.Sprintf("register failed (status %d, err %v)", status, err)
		return outcome
	}

	// Calibrate with the genuine face regardless of persona; the impostor
	// takes over only after calibration, like a real handoff would.
	calReq := map[string]any{"samples": calibrationSamples(config.CalibrationSamples)}
	status, err = client.postJSON(ctx, base+"/calibrate", calReq, nil)
	if err != nil || status != StatusOK {
		outcome.Reason = fmt.Sprintf("calibrate failed (status %d, err %v)", status, err)
		return outcome
	}

	// Start detection with tight thresholds so short runs converge.
	caution, warning := 6, 12
	startReq := map[string]any{
		"caution_threshold": caution,
		"warning_threshold": warning,
	}
	status, err = client.postJSON(ctx, base+"/detection/start", startReq, nil)
	if err != nil || status != StatusOK {
		outcome.Reason = fmt.Sprintf("start failed (status %d, err %v)", status, err)
		return outcome
	}

	// Stream frames for the configured duration.
	deadline := time.Now().Add(config.RunFor)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return outcome
		default:
		}

		frame := map[string]any{
			"frame_id": uuid.NewString(),
			"faces":    []geometry.LandmarkSet{personaFace(persona)},
			"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		}
		st, err := client.postJSON(ctx, base+"/frames", frame, nil)
		switch {
		case err != nil || st >= 400:
			atomic.AddInt64(framesFailed, 1)
		case st == StatusOK:
			atomic.AddInt64(framesDuplicate, 1)
		default:
			atomic.AddInt64(framesSubmitted, 1)
		}

		time.Sleep(config.FrameInterval)
	}

	// Let the drift window fill before the final read.
	time.Sleep(SettleDelay)

	var final types.SessionStatus
	if st, err := client.getJSON(ctx, base+"/status", &final); err != nil || st != StatusOK {
		outcome.Reason = fmt.Sprintf("status read failed (status %d, err %v)", st, err)
		return outcome
	}
	outcome.WarningLevel = final.WarningLevel
	outcome.DriftStatus = final.DriftStatus
	outcome.ExposedLevel = string(final.ExposedLevel)
	outcome.Suspicion = final.Suspicion
	outcome.Violations = final.ViolationCount

	if !config.KeepSessions {
		if resp, err := client.Delete(ctx, base); err == nil {
			_ = resp.Body.Close()
		}
	}
	return outcome
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var passRate float64
	verified := stats.VerificationsPassed + stats.VerificationsFailed
	if verified > 0 {
		passRate = float64(stats.VerificationsPassed) / float64(verified) * PercentageMultiplier
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("sessionsStarted", stats.SessionsStarted),
		logger.Int("framesSubmitted", stats.FramesSubmitted),
		logger.Int("framesDuplicate", stats.FramesDuplicate),
		logger.Int("framesFailed", stats.FramesFailed),
		logger.Int("verificationsPassed", stats.VerificationsPassed),
		logger.Int("verificationsFailed", stats.VerificationsFailed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("passRate", passRate))
}
