// Package identity turns facial landmarks into pose/scale-normalized feature
// vectors and verifies, frame over frame, that the person on camera is the
// one who calibrated the session.
package identity

import (
	"github.com/okian/vigil/internal/domain/geometry"
)

// featurePoints is the fixed, ordered subset of mesh points the identity
// schema is built from. Order matters: it defines vector dimensions.
var featurePoints = [...]int{
	geometry.LeftEyeOuter,
	geometry.LeftEyeInner,
	geometry.RightEyeInner,
	geometry.RightEyeOuter,
	geometry.NoseTip,
	geometry.MouthLeft,
	geometry.MouthRight,
	geometry.UpperLip,
	geometry.LowerLip,
	geometry.Chin,
	geometry.LeftBrow,
	geometry.RightBrow,
}

// Schema constants for the identity feature vector.
const (
	// VectorLen is 2 coordinates per selected point plus the ratio block.
	VectorLen  = 2*len(featurePoints) + ratioCount
	ratioCount = 4

	// minScale guards against near edge-on faces where the inter-ocular
	// distance collapses and normalization would blow up.
	minScale = 1e-6
)

// Vector is a fixed-length identity feature vector. Two vectors are only
// comparable when produced by the same schema (same length and ordering).
type Vector []float64

// ExtractFeatures converts one landmark set into an identity vector.
// It is pure and deterministic: identical input yields identical output.
// Returns ErrUnavailable when a required landmark is missing or the face
// geometry is degenerate.
func ExtractFeatures(set geometry.LandmarkSet) (Vector, error) {
	if !set.HasAll(featurePoints[:]...) {
		return nil, ErrUnavailable
	}

	pts := make([]geometry.Point, len(featurePoints))
	for i, idx := range featurePoints {
		pts[i], _ = set.At(idx)
	}

	scale, ok := geometry.InterOcular(set)
	if !ok || scale < minScale {
		return nil, ErrUnavailable
	}

	centroid := geometry.Centroid(pts)
	v := make(Vector, 0, VectorLen)
	for _, p := range pts {
		v = append(v, (p.X-centroid.X)/scale, (p.Y-centroid.Y)/scale)
	}

	// Scale-invariant ratios: robust to in-plane translation and zoom,
	// sensitive to the proportions that differ between faces.
	mouthL, _ := set.At(geometry.MouthLeft)
	mouthR, _ := set.At(geometry.MouthRight)
	nose, _ := set.At(geometry.NoseTip)
	chin, _ := set.At(geometry.Chin)
	lBrow, _ := set.At(geometry.LeftBrow)
	rBrow, _ := set.At(geometry.RightBrow)
	lEye, _ := set.At(geometry.LeftEyeOuter)
	rEye, _ := set.At(geometry.RightEyeOuter)

	v = append(v,
		geometry.Distance(mouthL, mouthR)/scale,
		geometry.Distance(nose, chin)/scale,
		geometry.Distance(lBrow, lEye)/scale,
		geometry.Distance(rBrow, rEye)/scale,
	)

	return v, nil
}
