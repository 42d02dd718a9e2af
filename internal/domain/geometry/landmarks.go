// Package geometry contains facial landmark primitives shared by the
// identity and behavior domains.
//
// Landmark indexing follows the MediaPipe FaceMesh convention (468 mesh
// points, 478 when iris refinement is enabled). Coordinates are normalized
// image-relative values, roughly in [0, 1] on x/y.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
package geometry

import "math"

// FaceMesh landmark indices for the points the engine depends on.
const (
	NoseTip       = 1
	UpperLip      = 13
	LowerLip      = 14
	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	MouthLeft     = 61
	MouthRight    = 291
	Chin          = 152
	LeftBrow      = 105
	RightBrow     = 334
	RightEyeInner = 362
	RightEyeOuter = 263

	// Eyelid points used for eye-opening measurement.
	LeftEyeTop     = 159
	LeftEyeBottom  = 145
	RightEyeTop    = 386
	RightEyeBottom = 374

	// Iris centers, present only when the detector runs with iris
	// refinement (478-point meshes).
	LeftIrisCenter  = 468
	RightIrisCenter = 473

	// MeshSize is the minimum landmark count for the base mesh.
	MeshSize = 468
)

// Point is a single detected landmark in normalized image space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet is the ordered, index-stable landmark list for one detected
// face. Index semantics are fixed by the FaceMesh convention above.
type LandmarkSet []Point

// At returns the landmark at index i and whether it exists. Callers must
// treat a false return as "feature unavailable", never as an error to panic
// on.
func (s LandmarkSet) At(i int) (Point, bool) {
	if i < 0 || i >= len(s) {
		return Point{}, false
	}
	return s[i], true
}

// HasAll reports whether every index in idxs is present in the set.
func (s LandmarkSet) HasAll(idxs ...int) bool {
	for _, i := range idxs {
		if i < 0 || i >= len(s) {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance between two points in the x/y
// plane. Depth is deliberately excluded: FaceMesh z values are not in the
// same unit as x/y and would skew scale normalization.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}

// Centroid returns the arithmetic mean of pts. Returns the zero point for an
// empty slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
		c.Z += p.Z
	}
	n := float64(len(pts))
	c.X /= n
	c.Y /= n
	c.Z /= n
	return c
}

// InterOcular returns the distance between the outer eye corners, the scale
// reference for all normalized measurements. The second return is false when
// either corner is missing from the set.
func InterOcular(s LandmarkSet) (float64, bool) {
	l, ok := s.At(LeftEyeOuter)
	if !ok {
		return 0, false
	}
	r, ok := s.At(RightEyeOuter)
	if !ok {
		return 0, false
	}
	return Distance(l, r), true
}
