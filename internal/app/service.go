// Package app provides the session registry service that implements the
// dependencies required by the HTTP API.
//
// The registry owns one calibration baseline, one suspicion aggregator, one
// drift watchdog, and at most one running detection loop per session token.
// All mutating operations are scoped to a single token; per-token payloads
// are exclusively owned by that token's loop, and the registry map itself is
// the only state shared across sessions.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/internal/adapters/report"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/scheduler"
	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/dedupe"
	"github.com/okian/vigil/internal/domain/identity"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/internal/domain/types"
	"github.com/okian/vigil/pkg/logger"
	"github.com/okian/vigil/pkg/metrics"
)

// Default registry configuration constants.
const (
	defaultDedupeSize        = 50000
	defaultMonitorLimit      = 100
	defaultStopTimeout       = 5 * time.Second
	defaultCalibrationBudget = 6 * time.Second
)

// session is the per-token aggregate: everything the registry owns for one
// candidate.
type session struct {
	token   string
	mailbox *queue.InMemoryMailbox

	mu          sync.Mutex
	loop        *scheduler.Loop
	baseline    identity.Baseline
	calibration behavior.CalibrationData
	violations  int
}

// CalibrationResult is the read shape returned by Calibrate.
type CalibrationResult = types.CalibrationResult

// StartOverrides carries per-session policy overrides for StartDetection.
type StartOverrides = types.StartOverrides

// Service implements the API dependencies for the proctoring engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	sessions map[string]*session
	store    repository.Store
	sink     report.Sink
	deduper  dedupe.Deduper
	detector scheduler.Detector

	// Configuration
	dedupeSize          int
	monitorLimit        int
	checks              behavior.Checks
	tolerances          behavior.Tolerances
	suspicionMax        int
	warnStep            int
	clearStep           int
	cautionThreshold    int
	warningThreshold    int
	driftInterval       time.Duration
	driftWindow         int
	driftMidThreshold   float64
	driftHighThreshold  float64
	driftTripCount      int
	minSamples          int
	calibrationBudget   time.Duration
	evidenceMinInterval time.Duration

	// State
	started bool
	baseCtx context.Context

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:          make(map[string]*session),
		dedupeSize:        defaultDedupeSize,
		monitorLimit:      defaultMonitorLimit,
		checks:            behavior.DefaultChecks(),
		tolerances:        behavior.DefaultTolerances(),
		calibrationBudget: defaultCalibrationBudget,
		detector:          scheduler.PassthroughDetector{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("registry")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory baseline store")
	}
	if s.sink == nil {
		s.sink = report.NopSink{}
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.baseCtx = ctx
	s.started = true

	s.logger.Info(ctx, "proctoring registry started",
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Any("checks", s.checks),
	)
	return nil
}

// Stop gracefully shuts down every session and the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping proctoring registry...")

	for _, sess := range s.sessions {
		s.stopSessionLocked(ctx, sess)
		_ = sess.mailbox.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	s.started = false
	s.logger.Info(ctx, "proctoring registry stopped")
}

// Register creates the session for token if absent, restoring any persisted
// calibration record. Returns true when the session was newly created.
func (s *Service) Register(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return false, ErrNotStarted
	}
	if _, ok := s.sessions[token]; ok {
		s.mu.Unlock()
		return false, nil
	}
	sess := &session{
		token:   token,
		mailbox: queue.NewInMemoryMailbox(),
	}
	s.sessions[token] = sess
	metrics.UpdateActiveSessions(len(s.sessions))
	s.mu.Unlock()

	// Recover a persisted baseline so a reloaded page does not force
	// recalibration. Absent or corrupt records mean uncalibrated.
	rec, err := s.store.Load(ctx, token)
	if err == nil {
		sess.mu.Lock()
		sess.baseline = rec.Baseline
		sess.calibration = rec.Calibration
		sess.mu.Unlock()
		s.logger.Info(ctx, "restored persisted calibration", logger.String("token", token))
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn(ctx, "baseline restore failed", logger.String("token", token), logger.Error(err))
	}
	return true, nil
}

// Calibrate fits a fresh identity baseline and behavioral reference from the
// supplied landmark sets. The collection budget rides on ctx: with enough
// valid samples at the deadline calibration degrades gracefully and succeeds
// with what was collected.
func (s *Service) Calibrate(ctx context.Context, token string, sets []behavior.Faces) (CalibrationResult, error) {
	sess, err := s.lookup(token)
	if err != nil {
		return CalibrationResult{}, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.calibrationBudget)
		defer cancel()
	}

	opts := []identity.Option{identity.WithBudget(s.calibrationBudget)}
	if s.minSamples > 0 {
		opts = append(opts, identity.WithMinSamples(s.minSamples))
	}
	cal := identity.NewCalibrator(opts...)
	for _, set := range sets {
		if !cal.Add(set) {
			break
		}
	}
	metrics.RecordCalibrationSamples(cal.Collected())

	baseline, err := cal.Fit(ctx)
	if err != nil {
		metrics.RecordCalibrationFailure()
		return CalibrationResult{Samples: cal.Collected()},
			fmt.Errorf("calibrate session %s: %w", token, err)
	}
	calData := behavior.DeriveCalibration(sets, s.tolerances)

	if err := s.store.Save(ctx, token, repository.Record{
		Baseline:    baseline,
		Calibration: calData,
	}); err != nil {
		// Persistence is a convenience; the in-memory session still
		// calibrates.
		s.logger.Warn(ctx, "baseline persist failed", logger.String("token", token), logger.Error(err))
	}

	sess.mu.Lock()
	sess.baseline = baseline
	sess.calibration = calData
	if sess.loop != nil {
		sess.loop.SetCalibration(baseline, calData)
	}
	sess.mu.Unlock()

	metrics.RecordCalibration()
	s.logger.Info(ctx, "session calibrated",
		logger.String("token", token),
		logger.Int("samples", cal.Collected()),
	)
	return CalibrationResult{Samples: cal.Collected(), Calibrated: true}, nil
}

// StartDetection spins up the detection loop for token. Idempotent: calling
// it on an already-detecting session is a no-op.
func (s *Service) StartDetection(ctx context.Context, token string, overrides *StartOverrides) error {
	sess, err := s.lookup(token)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.loop != nil {
		sess.mu.Unlock()
		return nil
	}

	checks := s.checks
	caution, warning := s.cautionThreshold, s.warningThreshold
	if overrides != nil {
		if overrides.Checks != nil {
			checks = *overrides.Checks
		}
		if overrides.CautionThreshold != nil {
			caution = *overrides.CautionThreshold
		}
		if overrides.WarningThreshold != nil {
			warning = *overrides.WarningThreshold
		}
	}

	var aggOpts []behavior.AggregatorOption
	if s.suspicionMax > 0 {
		aggOpts = append(aggOpts, behavior.WithCounterMax(s.suspicionMax))
	}
	if s.warnStep > 0 || s.clearStep > 0 {
		aggOpts = append(aggOpts, behavior.WithSteps(s.warnStep, s.clearStep))
	}
	if caution > 0 && warning > caution {
		aggOpts = append(aggOpts, behavior.WithLevelThresholds(caution, warning))
	}

	var wdOpts []identity.WatchdogOption
	if s.driftWindow > 0 {
		wdOpts = append(wdOpts, identity.WithWindowSize(s.driftWindow))
	}
	if s.driftMidThreshold > 0 && s.driftHighThreshold > s.driftMidThreshold {
		wdOpts = append(wdOpts, identity.WithThresholds(s.driftMidThreshold, s.driftHighThreshold))
	}
	if s.driftTripCount > 0 {
		wdOpts = append(wdOpts, identity.WithTripCount(s.driftTripCount))
	}

	loopOpts := []scheduler.Option{
		scheduler.WithDetector(s.detector),
		scheduler.WithAnalyzer(behavior.NewAnalyzer(checks)),
		scheduler.WithAggregator(behavior.NewAggregator(aggOpts...)),
		scheduler.WithWatchdog(identity.NewWatchdog(wdOpts...)),
		scheduler.WithCalibration(sess.baseline, sess.calibration),
		scheduler.WithSink(s.sink),
		scheduler.WithViolationCallback(func(v model.Violation) {
			sess.mu.Lock()
			sess.violations++
			sess.mu.Unlock()
		}),
		scheduler.WithLogger(s.logger),
	}
	if s.driftInterval > 0 {
		loopOpts = append(loopOpts, scheduler.WithDriftInterval(s.driftInterval))
	}
	if s.evidenceMinInterval > 0 {
		loopOpts = append(loopOpts, scheduler.WithEvidenceMinInterval(s.evidenceMinInterval))
	}

	loop := scheduler.NewLoop(token, sess.mailbox, loopOpts...)
	sess.loop = loop
	sess.mu.Unlock()
	go loop.Run(s.baseCtx)

	s.updateLoopGauge()
	s.logger.Info(ctx, "detection started", logger.String("token", token))
	return nil
}

// StopDetection stops the detection loop for token. Idempotent; after it
// returns no further callbacks fire for the token. Stopping forgives
// accumulated suspicion: the next start begins from a zero counter and an
// empty drift window.
func (s *Service) StopDetection(ctx context.Context, token string) error {
	sess, err := s.lookup(token)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	loop := sess.loop
	sess.loop = nil
	sess.mu.Unlock()

	if loop == nil {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(ctx, defaultStopTimeout)
	defer cancel()
	if err := loop.Shutdown(stopCtx); err != nil {
		s.logger.Warn(ctx, "detection stop timed out", logger.String("token", token), logger.Error(err))
	}
	s.updateLoopGauge()
	s.logger.Info(ctx, "detection stopped", logger.String("token", token))
	return nil
}

// OfferFrame places a frame in the session's mailbox. Stale frames (no
// timestamp advance) are dropped silently; that is the mailbox's job.
func (s *Service) OfferFrame(ctx context.Context, token string, f model.Frame) error {
	sess, err := s.lookup(token)
	if err != nil {
		return err
	}
	f.Token = token
	sess.mailbox.Offer(ctx, f)
	return nil
}

// SeenAndRecord atomically checks if a frame id was seen and records it if
// not. Returns true if the frame was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordFrameDuplicate()
	}
	return seen
}

// Unrecord removes a frame ID from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Status returns the externally exposed state for one session.
func (s *Service) Status(_ context.Context, token string) (types.SessionStatus, error) {
	sess, err := s.lookup(token)
	if err != nil {
		return types.SessionStatus{}, err
	}
	return s.statusOf(sess), nil
}

// TopSuspects returns up to n sessions ordered by suspicion counter
// descending. The proctor's monitor view.
func (s *Service) TopSuspects(_ context.Context, n int) []types.SessionStatus {
	if n <= 0 || n > s.monitorLimit {
		n = s.monitorLimit
	}
	s.mu.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	statuses := make([]types.SessionStatus, 0, len(all))
	for _, sess := range all {
		statuses = append(statuses, s.statusOf(sess))
	}
	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].Suspicion > statuses[j].Suspicion
	})
	if len(statuses) > n {
		statuses = statuses[:n]
	}
	return statuses
}

// Remove tears the session down: stops its loop, closes the mailbox, and
// deletes the persisted record.
func (s *Service) Remove(ctx context.Context, token string) error {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w", token, ErrSessionNotFound)
	}
	delete(s.sessions, token)
	metrics.UpdateActiveSessions(len(s.sessions))
	s.mu.Unlock()

	s.stopSessionLocked(ctx, sess)
	_ = sess.mailbox.Close()
	if err := s.store.Delete(ctx, token); err != nil {
		s.logger.Warn(ctx, "baseline delete failed", logger.String("token", token), logger.Error(err))
	}
	metrics.RecordSessionRemoved()
	s.logger.Info(ctx, "session removed", logger.String("token", token))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	detecting := 0
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.loop != nil {
			detecting++
		}
		sess.mu.Unlock()
	}
	stats := map[string]interface{}{
		"started":    s.started,
		"sessions":   len(s.sessions),
		"detecting":  detecting,
		"dedupeSize": s.dedupeSize,
	}
	if s.deduper != nil {
		stats["trackedFrames"] = s.deduper.Size()
	}
	metrics.UpdateActiveSessions(len(s.sessions))
	metrics.UpdateDetectionLoops(detecting)
	return stats
}

// lookup resolves a token or fails fast. Unknown tokens never create state.
func (s *Service) lookup(token string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	sess, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", token, ErrSessionNotFound)
	}
	return sess, nil
}

func (s *Service) statusOf(sess *session) types.SessionStatus {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := types.SessionStatus{
		Token:          sess.token,
		Calibrated:     sess.calibration.Calibrated,
		Detecting:      sess.loop != nil,
		WarningLevel:   string(behavior.LevelOK),
		DriftStatus:    string(identity.StatusNone),
		ViolationCount: sess.violations,
	}
	if sess.loop != nil {
		snap := sess.loop.Snapshot()
		st.Suspicion = snap.Counter
		st.WarningLevel = string(snap.Level)
		st.DriftStatus = string(snap.DriftStatus)
	}
	st.ExposedLevel = exposedLevel(behavior.Level(st.WarningLevel), identity.Status(st.DriftStatus))
	return st
}

// exposedLevel combines the behavioral warning level with the drift verdict
// into the externally reported severity.
func exposedLevel(level behavior.Level, drift identity.Status) types.ExposedLevel {
	switch {
	case drift == identity.StatusFail:
		return types.ExposedHigh
	case level == behavior.LevelWarning && drift == identity.StatusRecheck:
		return types.ExposedHigh
	case level == behavior.LevelWarning || drift == identity.StatusRecheck:
		return types.ExposedMedium
	case level == behavior.LevelCaution:
		return types.ExposedLow
	default:
		return types.ExposedNone
	}
}

// stopSessionLocked shuts down a session's loop outside the registry lock.
func (s *Service) stopSessionLocked(ctx context.Context, sess *session) {
	sess.mu.Lock()
	loop := sess.loop
	sess.loop = nil
	sess.mu.Unlock()
	if loop == nil {
		return
	}
	stopCtx, cancel := context.WithTimeout(ctx, defaultStopTimeout)
	defer cancel()
	_ = loop.Shutdown(stopCtx)
}

func (s *Service) updateLoopGauge() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	detecting := 0
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.loop != nil {
			detecting++
		}
		sess.mu.Unlock()
	}
	metrics.UpdateDetectionLoops(detecting)
}
