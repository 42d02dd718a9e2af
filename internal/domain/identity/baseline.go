package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/vigil/internal/domain/geometry"
)

// Default calibration configuration constants.
const (
	defaultMinSamples = 10
	defaultBudget     = 6 * time.Second

	// varianceFloor keeps every dimension strictly positive so the
	// Mahalanobis distance never divides by zero, even when all
	// calibration samples are identical on some dimension.
	varianceFloor = 1e-4
)

// Baseline is the per-session identity reference: a diagonal-covariance
// Gaussian fitted over calibration samples. Immutable once fitted; a
// recalibration replaces the whole value.
type Baseline struct {
	Mean     Vector `json:"mean"`
	Variance Vector `json:"variance"`
}

// Valid reports whether the baseline matches the current feature schema.
// A persisted baseline with a different length is corrupt (or from an older
// schema) and must be treated as absent.
func (b Baseline) Valid() bool {
	return len(b.Mean) == VectorLen && len(b.Variance) == VectorLen
}

// FitBaseline computes the per-dimension mean and Bessel-corrected variance
// over samples. Variance gets an additive regularization floor. All samples
// must share the schema length; the caller guarantees this by producing them
// with ExtractFeatures.
func FitBaseline(samples []Vector) (Baseline, error) {
	if len(samples) == 0 {
		return Baseline{}, fmt.Errorf("fit baseline: %w", ErrInsufficientSamples)
	}
	dims := len(samples[0])
	for _, s := range samples {
		if len(s) != dims {
			return Baseline{}, fmt.Errorf("fit baseline: %w", ErrSchemaMismatch)
		}
	}

	mean := make(Vector, dims)
	for _, s := range samples {
		for i, x := range s {
			mean[i] += x
		}
	}
	n := float64(len(samples))
	for i := range mean {
		mean[i] /= n
	}

	variance := make(Vector, dims)
	for _, s := range samples {
		for i, x := range s {
			d := x - mean[i]
			variance[i] += d * d
		}
	}
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	for i := range variance {
		variance[i] = variance[i]/denom + varianceFloor
	}

	return Baseline{Mean: mean, Variance: variance}, nil
}

// Option applies a configuration option to the Calibrator.
type Option func(*Calibrator)

// WithMinSamples sets the minimum number of valid feature vectors required
// before a baseline may be fitted.
func WithMinSamples(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.minSamples = n
		}
	}
}

// WithBudget sets the wall-clock budget for sample collection.
func WithBudget(d time.Duration) Option {
	return func(c *Calibrator) {
		if d > 0 {
			c.budget = d
		}
	}
}

// Calibrator accumulates feature vectors from calibration frames and fits a
// Baseline once enough valid samples arrived. Not safe for concurrent use;
// each calibration run owns its own Calibrator.
type Calibrator struct {
	minSamples int
	budget     time.Duration
	deadline   time.Time
	samples    []Vector
	skipped    int
}

// NewCalibrator creates a calibrator with its collection window starting now.
func NewCalibrator(opts ...Option) *Calibrator {
	c := &Calibrator{
		minSamples: defaultMinSamples,
		budget:     defaultBudget,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.deadline = time.Now().Add(c.budget)
	return c
}

// Add extracts features from one landmark set and records them. Degenerate
// sets are counted but otherwise ignored; they never fail the run by
// themselves. Returns false once the collection window has closed.
func (c *Calibrator) Add(set geometry.LandmarkSet) bool {
	if time.Now().After(c.deadline) {
		return false
	}
	v, err := ExtractFeatures(set)
	if err != nil {
		c.skipped++
		return true
	}
	c.samples = append(c.samples, v)
	return true
}

// Collected returns the number of valid samples gathered so far. Exposed so
// a failed calibration can surface partial progress to the caller.
func (c *Calibrator) Collected() int {
	return len(c.samples)
}

// Fit closes the run and fits the baseline. Honors ctx so a caller-imposed
// deadline behaves like the internal budget: with enough samples the run
// degrades gracefully and succeeds with what was collected; with too few it
// fails with ErrInsufficientSamples wrapped around the partial count.
func (c *Calibrator) Fit(ctx context.Context) (Baseline, error) {
	if err := ctx.Err(); err != nil && len(c.samples) < c.minSamples {
		return Baseline{}, fmt.Errorf("calibration interrupted with %d/%d samples: %w",
			len(c.samples), c.minSamples, ErrInsufficientSamples)
	}
	if len(c.samples) < c.minSamples {
		return Baseline{}, fmt.Errorf("collected %d/%d samples (%d degenerate): %w",
			len(c.samples), c.minSamples, c.skipped, ErrInsufficientSamples)
	}
	return FitBaseline(c.samples)
}
