package identity

// Default drift classification constants. These thresholds are behavioral
// policy, tuned on the original system's data; override via options.
const (
	defaultWindowSize    = 5
	defaultMidThreshold  = 2.5
	defaultHighThreshold = 3.5
	defaultTripCount     = 3
)

// Status is the identity-drift verdict for a session.
type Status string

// Drift statuses.
const (
	// StatusNone applies until a baseline exists.
	StatusNone Status = "none"
	// StatusPass means recent distances look like the calibrated person.
	StatusPass Status = "pass"
	// StatusRecheck means distances drifted into the gray zone; the
	// candidate should be asked to re-verify.
	StatusRecheck Status = "recheck_needed"
	// StatusFail means the window holds enough high distances to suspect
	// a different person on camera.
	StatusFail Status = "impersonation_suspected"
)

// Observation is the outcome of feeding one distance to the watchdog.
// ReportViolation and Alert are edge-triggered: raised once per entry into
// the corresponding state, never repeated while the state persists.
type Observation struct {
	Status          Status
	Distance        float64
	ReportViolation bool
	Alert           bool
}

// WatchdogOption applies a configuration option to the Watchdog.
type WatchdogOption func(*Watchdog)

// WithWindowSize sets the sliding window capacity.
func WithWindowSize(n int) WatchdogOption {
	return func(w *Watchdog) {
		if n > 0 {
			w.windowSize = n
		}
	}
}

// WithThresholds sets the gray-zone and fail distance thresholds.
func WithThresholds(mid, high float64) WatchdogOption {
	return func(w *Watchdog) {
		if mid > 0 && high > mid {
			w.midThreshold = mid
			w.highThreshold = high
		}
	}
}

// WithTripCount sets how many window entries must cross a threshold before
// the corresponding state trips.
func WithTripCount(n int) WatchdogOption {
	return func(w *Watchdog) {
		if n > 0 {
			w.tripCount = n
		}
	}
}

// Watchdog tracks a sliding window of identity distances for one session and
// applies the hysteresis rule over it. One instance per session; callers
// serialize access (the drift tick loop is the only writer).
type Watchdog struct {
	windowSize    int
	midThreshold  float64
	highThreshold float64
	tripCount     int

	window []float64
	status Status

	// Dwell latches for edge-triggered signaling.
	failSignaled    bool
	recheckSignaled bool
}

// NewWatchdog creates a drift watchdog in the pre-baseline state.
func NewWatchdog(opts ...WatchdogOption) *Watchdog {
	w := &Watchdog{
		windowSize:    defaultWindowSize,
		midThreshold:  defaultMidThreshold,
		highThreshold: defaultHighThreshold,
		tripCount:     defaultTripCount,
		status:        StatusNone,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.window = make([]float64, 0, w.windowSize)
	return w
}

// Observe appends one distance (FIFO eviction at capacity), reclassifies the
// window, and returns the resulting status plus any edge-triggered signals.
func (w *Watchdog) Observe(distance float64) Observation {
	if len(w.window) == w.windowSize {
		copy(w.window, w.window[1:])
		w.window = w.window[:w.windowSize-1]
	}
	w.window = append(w.window, distance)

	var high, mid int
	for _, d := range w.window {
		switch {
		case d > w.highThreshold:
			high++
		case d > w.midThreshold:
			mid++
		}
	}

	next := StatusPass
	switch {
	case high >= w.tripCount:
		next = StatusFail
	case mid >= w.tripCount:
		next = StatusRecheck
	}

	obs := Observation{Status: next, Distance: distance}
	switch next {
	case StatusFail:
		if !w.failSignaled {
			obs.ReportViolation = true
			obs.Alert = true
			w.failSignaled = true
		}
	case StatusRecheck:
		if !w.recheckSignaled {
			obs.Alert = true
			w.recheckSignaled = true
		}
	case StatusPass:
		// Dwell latches clear only on a full return to pass, so a
		// fail -> recheck -> fail oscillation alerts once.
		w.failSignaled = false
		w.recheckSignaled = false
	}

	w.status = next
	return obs
}

// Status returns the current verdict.
func (w *Watchdog) Status() Status {
	return w.status
}

// Window returns a copy of the current distance window, oldest first.
func (w *Watchdog) Window() []float64 {
	out := make([]float64, len(w.window))
	copy(out, w.window)
	return out
}

// Reset clears the window and latches and returns the watchdog to the
// pre-baseline state. Used on recalibration and session teardown.
func (w *Watchdog) Reset() {
	w.window = w.window[:0]
	w.status = StatusNone
	w.failSignaled = false
	w.recheckSignaled = false
}
