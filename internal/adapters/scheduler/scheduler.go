// Package scheduler runs the per-session detection loops.
//
// Each active session owns one Loop carrying two cadences: the frame loop,
// strictly ordered by frame arrival through the session mailbox, and the
// drift ticker, a fixed wall-clock interval that scores the latest available
// landmarks against the identity baseline. The two cadences interleave
// freely; consumers must not assume ordering between them.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/internal/adapters/report"
	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/geometry"
	"github.com/okian/vigil/internal/domain/identity"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Default scheduler configuration constants.
const (
	defaultDriftInterval       = 4 * time.Second
	defaultEvidenceMinInterval = 15 * time.Second
	shutdownTimeout            = 5 * time.Second
)

// Frame is what loops consume from the mailbox.
// Using the model.Frame type for consistency.
type Frame = model.Frame

// Detector yields the landmark sets for the faces in a frame. The engine
// never manages a detector's lifecycle; it only relies on this call shape.
// Implementations must be safe for reuse across sessions: each call is
// self-contained given its input frame.
type Detector interface {
	Detect(ctx context.Context, f Frame) ([]geometry.LandmarkSet, error)
}

// PassthroughDetector returns the landmarks already carried on the frame.
// This is the production path: detection runs at the client's edge and
// frames arrive pre-detected.
type PassthroughDetector struct{}

// Detect returns the frame's embedded landmark sets.
func (PassthroughDetector) Detect(_ context.Context, f Frame) ([]geometry.LandmarkSet, error) {
	return f.Faces, nil
}

// Snapshot is a point-in-time view of a loop's session state, safe to read
// while the loop runs.
type Snapshot struct {
	Counter     int
	Level       behavior.Level
	DriftStatus identity.Status
}

// Loop is the cooperative detection loop for one session.
type Loop struct {
	token    string
	mailbox  queue.Mailbox
	detector Detector
	analyzer *behavior.Analyzer
	sink     report.Sink

	driftInterval       time.Duration
	evidenceMinInterval time.Duration

	// Guarded by mu: the session's mutable scoring state, written by the
	// two loop goroutines and read by Snapshot.
	mu           sync.Mutex
	aggregator   *behavior.Aggregator
	watchdog     *identity.Watchdog
	baseline     identity.Baseline
	calibration  behavior.CalibrationData
	hasBaseline  bool
	lastFaces    []geometry.LandmarkSet
	lastEvidence time.Time

	onViolation func(v model.Violation)

	// Shutdown control
	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewLoop creates a detection loop for one session. The aggregator and
// watchdog are created fresh: a new loop never inherits suspicion from a
// prior run.
func NewLoop(token string, mailbox queue.Mailbox, opts ...Option) *Loop {
	l := &Loop{
		token:               token,
		mailbox:             mailbox,
		detector:            PassthroughDetector{},
		analyzer:            behavior.NewAnalyzer(behavior.DefaultChecks()),
		sink:                report.NopSink{},
		driftInterval:       defaultDriftInterval,
		evidenceMinInterval: defaultEvidenceMinInterval,
		aggregator:          behavior.NewAggregator(),
		watchdog:            identity.NewWatchdog(),
		shutdown:            make(chan struct{}),
		done:                make(chan struct{}),
		logger:              logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run starts both cadences and blocks until the loop stops. After Run
// returns, no further callbacks fire for this session.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.shutdown:
			cancel()
		case <-runCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.driftLoop(runCtx)
	}()

	l.frameLoop(runCtx)
	cancel()
	wg.Wait()
}

// Shutdown stops the loop and waits for both cadences to exit. Idempotent:
// stopping an already-stopped loop is a no-op.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.shutdown)
	})
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warn(ctx, "loop shutdown timed out", logger.String("token", l.token))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Snapshot returns the loop's current scoring state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Counter:     l.aggregator.Counter(),
		Level:       l.aggregator.Level(),
		DriftStatus: l.watchdog.Status(),
	}
}

// frameLoop consumes frames in arrival order. It re-arms by blocking on the
// mailbox: no new frame, no work.
func (l *Loop) frameLoop(ctx context.Context) {
	for {
		frame, ok := l.mailbox.Take(ctx)
		if !ok {
			return
		}
		l.processFrame(ctx, frame)
	}
}

// processFrame handles a single frame. Errors are local: a failed detection
// skips the frame and the loop keeps running.
func (l *Loop) processFrame(ctx context.Context, frame Frame) {
	start := time.Now()
	defer func() {
		metrics.RecordAnalysisLatency(float64(time.Since(start).Milliseconds()))
	}()

	faces, err := l.detector.Detect(ctx, frame)
	if err != nil {
		metrics.RecordErrorByComponent("scheduler", "detector_error")
		l.logger.Warn(ctx, "detector failed; frame skipped",
			logger.String("token", l.token),
			logger.String("frameID", frame.FrameID),
			logger.Error(err),
		)
		return
	}

	l.mu.Lock()
	l.lastFaces = faces
	cal := l.calibration
	l.mu.Unlock()

	res := l.analyzer.Analyze(faces, cal)
	metrics.RecordFrameProcessed()
	if res.NoFace {
		metrics.RecordFrameNoFace()
	}
	for _, w := range res.Warnings {
		metrics.RecordBehaviorFlag(w)
	}

	l.mu.Lock()
	before := l.aggregator.Level()
	level := l.aggregator.Update(res)
	capture := level == behavior.LevelWarning &&
		len(frame.Snapshot) > 0 &&
		time.Since(l.lastEvidence) >= l.evidenceMinInterval
	if capture {
		l.lastEvidence = time.Now()
	}
	l.mu.Unlock()

	if level != before {
		metrics.RecordLevelTransition(string(level))
		l.logger.Info(ctx, "warning level changed",
			logger.String("token", l.token),
			logger.String("level", string(level)),
			logger.Any("warnings", res.Warnings),
		)
	}

	if capture {
		ev := model.Evidence{
			ID:        uuid.NewString(),
			Token:     l.token,
			Image:     frame.Snapshot,
			Timestamp: frame.Timestamp,
		}
		// Best-effort side channel; never blocks the frame cadence.
		go func() {
			_ = l.sink.UploadEvidence(context.WithoutCancel(ctx), ev)
		}()
	}
}

// driftLoop scores the latest available landmarks against the baseline at a
// fixed interval, independent of frame delivery.
func (l *Loop) driftLoop(ctx context.Context) {
	ticker := time.NewTicker(l.driftInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.driftTick(ctx)
		}
	}
}

func (l *Loop) driftTick(ctx context.Context) {
	l.mu.Lock()
	hasBaseline := l.hasBaseline
	baseline := l.baseline
	faces := l.lastFaces
	l.mu.Unlock()

	if !hasBaseline || len(faces) == 0 {
		metrics.RecordDriftTickSkipped()
		return
	}

	vec, err := identity.ExtractFeatures(faces[0])
	if err != nil {
		// Degenerate geometry on this tick; the next one may recover.
		metrics.RecordDriftTickSkipped()
		return
	}
	distance, err := identity.Score(vec, baseline)
	if err != nil {
		metrics.RecordErrorByComponent("scheduler", "drift_score_error")
		l.logger.Error(ctx, "drift scoring failed",
			logger.String("token", l.token),
			logger.Error(err),
		)
		return
	}

	l.mu.Lock()
	before := l.watchdog.Status()
	obs := l.watchdog.Observe(distance)
	l.mu.Unlock()

	metrics.RecordDriftTick()
	metrics.RecordDriftDistance(distance)
	if obs.Status != before {
		metrics.RecordDriftTransition(string(obs.Status))
	}
	if obs.Alert {
		l.logger.Warn(ctx, "identity drift alert",
			logger.String("token", l.token),
			logger.String("status", string(obs.Status)),
			logger.Float64("distance", distance),
		)
	}
	if obs.ReportViolation {
		v := model.Violation{
			ID:        uuid.NewString(),
			Type:      model.ViolationImpersonation,
			Details:   fmt.Sprintf("identity distance %.2f over drift window", distance),
			Timestamp: time.Now().UTC(),
		}
		if l.onViolation != nil {
			l.onViolation(v)
		}
		// Fire and forget: reporting failures never affect scoring.
		go func() {
			_ = l.sink.Report(context.WithoutCancel(ctx), l.token, v)
		}()
	}
}

// SetCalibration installs (or replaces) the identity baseline and the
// behavioral calibration for a running loop. Used on recalibration without
// restarting detection; resets drift state so old distances do not linger.
func (l *Loop) SetCalibration(b identity.Baseline, cal behavior.CalibrationData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseline = b
	l.calibration = cal
	l.hasBaseline = b.Valid()
	l.watchdog.Reset()
}
