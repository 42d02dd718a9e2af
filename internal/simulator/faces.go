package simulator

import (
	"crypto/rand"
	"math/big"

	"github.com/okian/vigil/internal/domain/geometry"
)

// Landmark generation constants.
const (
	randomFloatDivisor = 1000000

	// meshWithIris is the landmark count with the iris refinement enabled.
	meshWithIris = 478

	// jitterAmplitude is the per-frame landmark noise for a steady face.
	jitterAmplitude = 0.002

	// impostorShift displaces key identity features far outside the
	// baseline variance floor.
	impostorShift = 0.05

	// wandererGazeShift moves the irises toward the eye corner, well past
	// the default horizontal gaze tolerance.
	wandererGazeShift = 0.03
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// jitter returns a small symmetric offset simulating sensor noise.
func jitter() float64 {
	return (getRandomFloat()*2 - 1) * jitterAmplitude
}

// canonicalFace lays out the landmarks the engine reads, in normalized image
// coordinates, for a front-facing candidate centered in frame. Landmarks the
// engine never touches stay at the face centroid.
func canonicalFace() geometry.LandmarkSet {
	set := make(geometry.LandmarkSet, meshWithIris)
	for i := range set {
		set[i] = geometry.Point{X: 0.5, Y: 0.5}
	}

	place := func(idx int, x, y float64) {
		set[idx] = geometry.Point{X: x, Y: y}
	}

	place(geometry.LeftBrow, 0.38, 0.33)
	place(geometry.RightBrow, 0.62, 0.33)
	place(geometry.LeftEyeOuter, 0.35, 0.40)
	place(geometry.LeftEyeInner, 0.44, 0.40)
	place(geometry.RightEyeInner, 0.56, 0.40)
	place(geometry.RightEyeOuter, 0.65, 0.40)
	place(geometry.LeftEyeTop, 0.395, 0.385)
	place(geometry.LeftEyeBottom, 0.395, 0.415)
	place(geometry.RightEyeTop, 0.605, 0.385)
	place(geometry.RightEyeBottom, 0.605, 0.415)
	place(geometry.LeftIrisCenter, 0.395, 0.40)
	place(geometry.RightIrisCenter, 0.605, 0.40)
	place(geometry.NoseTip, 0.50, 0.52)
	place(geometry.UpperLip, 0.50, 0.62)
	place(geometry.LowerLip, 0.50, 0.64)
	place(geometry.MouthLeft, 0.43, 0.63)
	place(geometry.MouthRight, 0.57, 0.63)
	place(geometry.Chin, 0.50, 0.75)

	return set
}

// personaFace returns one frame's landmark set for the given persona. Every
// call adds fresh jitter so consecutive frames are not byte-identical.
func personaFace(p Persona) geometry.LandmarkSet {
	set := canonicalFace()

	switch p {
	case PersonaImpostor:
		// A different person: wider mouth, longer chin, displaced nose.
		set[geometry.MouthLeft].X -= impostorShift
		set[geometry.MouthRight].X += impostorShift
		set[geometry.Chin].Y += impostorShift
		set[geometry.NoseTip].X += impostorShift
		set[geometry.LeftBrow].Y -= impostorShift
	case PersonaWanderer:
		// Same face, eyes pointed off-screen.
		set[geometry.LeftIrisCenter].X += wandererGazeShift
		set[geometry.RightIrisCenter].X += wandererGazeShift
	case PersonaGenuine:
		// Nothing beyond jitter.
	}

	for i := range set {
		set[i].X += jitter()
		set[i].Y += jitter()
	}
	return set
}

// calibrationSamples produces the hold-still landmark sets used to fit the
// baseline. Calibration always records the genuine face; personas diverge
// only during detection.
func calibrationSamples(n int) []geometry.LandmarkSet {
	sets := make([]geometry.LandmarkSet, n)
	for i := range sets {
		sets[i] = personaFace(PersonaGenuine)
	}
	return sets
}
