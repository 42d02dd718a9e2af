package identity

import (
	"fmt"
	"math"
)

// Score computes the diagonal Mahalanobis distance between v and the
// baseline: sqrt(sum((x_i - mean_i)^2 / variance_i)). Zero exactly when v
// equals the mean; monotonically increasing with per-dimension normalized
// deviation; insensitive to the absolute scale of any single dimension
// because each is normalized by its own variance.
func Score(v Vector, b Baseline) (float64, error) {
	if len(v) != len(b.Mean) || len(v) != len(b.Variance) {
		return 0, fmt.Errorf("score: vector len %d vs baseline len %d: %w",
			len(v), len(b.Mean), ErrSchemaMismatch)
	}
	var sum float64
	for i, x := range v {
		d := x - b.Mean[i]
		sum += d * d / b.Variance[i]
	}
	return math.Sqrt(sum), nil
}
