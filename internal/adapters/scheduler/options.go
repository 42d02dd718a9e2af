// Package scheduler runs the per-session detection loops.
package scheduler

import (
	"time"

	"github.com/okian/vigil/internal/adapters/report"
	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/identity"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

// Option applies a configuration option to the Loop.
type Option func(*Loop)

// WithDetector sets the landmark detector.
func WithDetector(d Detector) Option {
	return func(l *Loop) {
		if d != nil {
			l.detector = d
		}
	}
}

// WithAnalyzer sets the behavior analyzer.
func WithAnalyzer(a *behavior.Analyzer) Option {
	return func(l *Loop) {
		if a != nil {
			l.analyzer = a
		}
	}
}

// WithAggregator sets the suspicion aggregator.
func WithAggregator(a *behavior.Aggregator) Option {
	return func(l *Loop) {
		if a != nil {
			l.aggregator = a
		}
	}
}

// WithWatchdog sets the drift watchdog.
func WithWatchdog(w *identity.Watchdog) Option {
	return func(l *Loop) {
		if w != nil {
			l.watchdog = w
		}
	}
}

// WithCalibration installs the baseline and calibration data at start.
func WithCalibration(b identity.Baseline, cal behavior.CalibrationData) Option {
	return func(l *Loop) {
		l.baseline = b
		l.calibration = cal
		l.hasBaseline = b.Valid()
	}
}

// WithSink sets the violation reporting sink.
func WithSink(s report.Sink) Option {
	return func(l *Loop) {
		if s != nil {
			l.sink = s
		}
	}
}

// WithDriftInterval sets the identity drift tick interval.
func WithDriftInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.driftInterval = d
		}
	}
}

// WithEvidenceMinInterval sets the minimum gap between evidence uploads.
func WithEvidenceMinInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.evidenceMinInterval = d
		}
	}
}

// WithViolationCallback registers a callback invoked for every violation the
// loop emits, before it is handed to the sink.
func WithViolationCallback(fn func(v model.Violation)) Option {
	return func(l *Loop) {
		l.onViolation = fn
	}
}

// WithLogger sets a custom logger for the loop.
func WithLogger(lg logger.Logger) Option {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg
		}
	}
}
