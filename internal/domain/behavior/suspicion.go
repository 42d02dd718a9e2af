package behavior

// Default suspicion policy constants. The asymmetry is intentional: a lapse
// escalates in a few frames while recovery requires sustained clean behavior.
const (
	defaultMaxCounter       = 60
	defaultWarnStep         = 2
	defaultClearStep        = 3
	defaultCautionThreshold = 20
	defaultWarningThreshold = 40
)

// Level is the behavioral warning level derived from the suspicion counter.
type Level string

// Warning levels, ordered.
const (
	LevelOK      Level = "ok"
	LevelCaution Level = "caution"
	LevelWarning Level = "warning"
)

// AggregatorOption applies a configuration option to the Aggregator.
type AggregatorOption func(*Aggregator)

// WithCounterMax sets the suspicion counter ceiling.
func WithCounterMax(max int) AggregatorOption {
	return func(a *Aggregator) {
		if max > 0 {
			a.max = max
		}
	}
}

// WithSteps sets the per-frame increment for warned frames and decrement for
// clean frames.
func WithSteps(warnStep, clearStep int) AggregatorOption {
	return func(a *Aggregator) {
		if warnStep > 0 {
			a.warnStep = warnStep
		}
		if clearStep > 0 {
			a.clearStep = clearStep
		}
	}
}

// WithLevelThresholds sets the caution and warning cutoffs. Caution must sit
// below warning.
func WithLevelThresholds(caution, warning int) AggregatorOption {
	return func(a *Aggregator) {
		if caution > 0 && warning > caution {
			a.cautionThreshold = caution
			a.warningThreshold = warning
		}
	}
}

// Aggregator maintains the clamped, asymmetrically decaying suspicion
// counter for one session and maps it to a warning level. One instance per
// session; the session's frame loop is the only writer.
type Aggregator struct {
	max              int
	warnStep         int
	clearStep        int
	cautionThreshold int
	warningThreshold int

	counter int
}

// NewAggregator creates an aggregator with the counter at zero.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		max:              defaultMaxCounter,
		warnStep:         defaultWarnStep,
		clearStep:        defaultClearStep,
		cautionThreshold: defaultCautionThreshold,
		warningThreshold: defaultWarningThreshold,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Update folds one frame result into the counter and returns the resulting
// level. The counter is clamped to [0, max] on both paths.
func (a *Aggregator) Update(r Result) Level {
	if r.Suspicious() {
		a.counter += a.warnStep
		if a.counter > a.max {
			a.counter = a.max
		}
	} else {
		a.counter -= a.clearStep
		if a.counter < 0 {
			a.counter = 0
		}
	}
	return a.Level()
}

// Level derives the warning level from the current counter.
func (a *Aggregator) Level() Level {
	switch {
	case a.counter > a.warningThreshold:
		return LevelWarning
	case a.counter > a.cautionThreshold:
		return LevelCaution
	default:
		return LevelOK
	}
}

// Counter returns the current suspicion counter value.
func (a *Aggregator) Counter() int {
	return a.counter
}

// Reset clears the counter. Stopping detection forgives accumulated
// suspicion rather than persisting it across restarts.
func (a *Aggregator) Reset() {
	a.counter = 0
}
