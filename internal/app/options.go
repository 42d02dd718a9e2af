package app

import (
	"time"

	"github.com/okian/vigil/internal/adapters/report"
	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/adapters/scheduler"
	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the calibration record store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithSink sets the violation reporting sink shared by all sessions.
func WithSink(sink report.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithDetector sets the landmark detector handed to every loop.
func WithDetector(d scheduler.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithDedupeSize sets the maximum number of tracked frame IDs.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMonitorLimit caps how many sessions a monitor query may return.
func WithMonitorLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.monitorLimit = limit
		}
	}
}

// WithChecks sets the default behavioral check toggles for new loops.
func WithChecks(c behavior.Checks) Option {
	return func(s *Service) {
		s.checks = c
	}
}

// WithTolerances sets the calibration tolerance bands.
func WithTolerances(t behavior.Tolerances) Option {
	return func(s *Service) {
		s.tolerances = t
	}
}

// WithSuspicionPolicy sets the counter ceiling and step sizes for the
// suspicion aggregator.
func WithSuspicionPolicy(max, warnStep, clearStep int) Option {
	return func(s *Service) {
		s.suspicionMax = max
		s.warnStep = warnStep
		s.clearStep = clearStep
	}
}

// WithLevelThresholds sets the default caution and warning counter
// thresholds.
func WithLevelThresholds(caution, warning int) Option {
	return func(s *Service) {
		s.cautionThreshold = caution
		s.warningThreshold = warning
	}
}

// WithDriftPolicy sets the drift window size, the two distance thresholds,
// and the trip count.
func WithDriftPolicy(window int, mid, high float64, trip int) Option {
	return func(s *Service) {
		s.driftWindow = window
		s.driftMidThreshold = mid
		s.driftHighThreshold = high
		s.driftTripCount = trip
	}
}

// WithDriftInterval sets the drift tick interval for new loops.
func WithDriftInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.driftInterval = d
		}
	}
}

// WithCalibrationPolicy sets the minimum sample count and collection budget.
func WithCalibrationPolicy(minSamples int, budget time.Duration) Option {
	return func(s *Service) {
		if minSamples > 0 {
			s.minSamples = minSamples
		}
		if budget > 0 {
			s.calibrationBudget = budget
		}
	}
}

// WithEvidenceMinInterval sets the minimum gap between evidence uploads.
func WithEvidenceMinInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.evidenceMinInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(lg logger.Logger) Option {
	return func(s *Service) {
		if lg != nil {
			s.logger = lg
		}
	}
}
