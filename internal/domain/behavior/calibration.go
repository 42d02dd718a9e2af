// Package behavior analyzes per-frame landmark sets for cheating-correlated
// behavior (gaze, head pose, eye state, extra faces) and aggregates the
// findings into a decaying per-session suspicion score.
package behavior

import (
	"math"

	"github.com/okian/vigil/internal/domain/geometry"
)

// Default per-axis tolerances. Behavioral policy constants carried over from
// the original system; override via config.
const (
	defaultGazeHTolerance   = 0.15
	defaultGazeVTolerance   = 0.12
	defaultEyeOpenTolerance = 0.35
	defaultYawTolerance     = 18.0
)

// Tolerances holds the per-axis bounds a calibrated session is allowed to
// wander within before a check flags it.
type Tolerances struct {
	GazeH   float64 `json:"gaze_h"`
	GazeV   float64 `json:"gaze_v"`
	EyeOpen float64 `json:"eye_open"`
	YawDeg  float64 `json:"yaw_deg"`
}

// DefaultTolerances returns the stock tolerance set.
func DefaultTolerances() Tolerances {
	return Tolerances{
		GazeH:   defaultGazeHTolerance,
		GazeV:   defaultGazeVTolerance,
		EyeOpen: defaultEyeOpenTolerance,
		YawDeg:  defaultYawTolerance,
	}
}

// CalibrationData is the session-level reference geometry captured at
// calibration time. Read-only after creation; recalibration replaces the
// whole value.
type CalibrationData struct {
	Calibrated  bool       `json:"calibrated"`
	GazeCenterH float64    `json:"gaze_center_h"`
	GazeCenterV float64    `json:"gaze_center_v"`
	BaseEyeOpen float64    `json:"base_eye_open"`
	BaseYawDeg  float64    `json:"base_yaw_deg"`
	Tolerances  Tolerances `json:"tolerances"`
	SnapshotID  string     `json:"snapshot_id,omitempty"`
}

// DeriveCalibration averages the gaze center, eye opening, and head yaw over
// the calibration frames. Frames missing the needed landmarks are skipped;
// if every frame is degenerate the result is uncalibrated.
func DeriveCalibration(sets []geometry.LandmarkSet, tol Tolerances) CalibrationData {
	var sumH, sumV, sumOpen, sumYaw float64
	var n int
	for _, set := range sets {
		gaze, gazeOK := gazeOffsets(set)
		opening, openOK := eyeOpening(set)
		yaw, yawOK := headYaw(set)
		if !gazeOK || !openOK || !yawOK {
			continue
		}
		sumH += gaze.AvgH
		sumV += gaze.AvgV
		sumOpen += opening
		sumYaw += yaw
		n++
	}
	if n == 0 {
		return CalibrationData{Tolerances: tol}
	}
	fn := float64(n)
	return CalibrationData{
		Calibrated:  true,
		GazeCenterH: sumH / fn,
		GazeCenterV: sumV / fn,
		BaseEyeOpen: sumOpen / fn,
		BaseYawDeg:  sumYaw / fn,
		Tolerances:  tol,
	}
}

// yawScale converts nose-position asymmetry into an approximate yaw angle in
// degrees. Calibrated empirically against the detector's output range.
const yawScale = 60.0

// headYaw estimates the head yaw angle from how far the nose tip sits off
// center between the outer eye corners. Positive means turned right (from
// the camera's point of view).
func headYaw(set geometry.LandmarkSet) (float64, bool) {
	nose, ok := set.At(geometry.NoseTip)
	if !ok {
		return 0, false
	}
	left, ok := set.At(geometry.LeftEyeOuter)
	if !ok {
		return 0, false
	}
	right, ok := set.At(geometry.RightEyeOuter)
	if !ok {
		return 0, false
	}
	scale := geometry.Distance(left, right)
	if scale < 1e-6 {
		return 0, false
	}
	asym := (geometry.Distance(nose, right) - geometry.Distance(nose, left)) / scale
	return asym * yawScale, true
}

// eyeOpening returns the average eyelid gap of both eyes normalized by the
// inter-ocular distance.
func eyeOpening(set geometry.LandmarkSet) (float64, bool) {
	if !set.HasAll(geometry.LeftEyeTop, geometry.LeftEyeBottom,
		geometry.RightEyeTop, geometry.RightEyeBottom) {
		return 0, false
	}
	scale, ok := geometry.InterOcular(set)
	if !ok || scale < 1e-6 {
		return 0, false
	}
	lt, _ := set.At(geometry.LeftEyeTop)
	lb, _ := set.At(geometry.LeftEyeBottom)
	rt, _ := set.At(geometry.RightEyeTop)
	rb, _ := set.At(geometry.RightEyeBottom)
	left := geometry.Distance(lt, lb) / scale
	right := geometry.Distance(rt, rb) / scale
	return (left + right) / 2, true
}

// gazeOffsets computes per-eye and averaged iris offsets from the eye-corner
// midpoints, normalized by each eye's width. Requires iris refinement
// landmarks; without them gaze checks are unavailable.
func gazeOffsets(set geometry.LandmarkSet) (Gaze, bool) {
	if !set.HasAll(geometry.LeftIrisCenter, geometry.RightIrisCenter,
		geometry.LeftEyeOuter, geometry.LeftEyeInner,
		geometry.RightEyeOuter, geometry.RightEyeInner) {
		return Gaze{}, false
	}
	lh, lv, ok := irisOffset(set, geometry.LeftIrisCenter, geometry.LeftEyeOuter, geometry.LeftEyeInner)
	if !ok {
		return Gaze{}, false
	}
	rh, rv, ok := irisOffset(set, geometry.RightIrisCenter, geometry.RightEyeOuter, geometry.RightEyeInner)
	if !ok {
		return Gaze{}, false
	}
	return Gaze{
		LeftH:  lh,
		LeftV:  lv,
		RightH: rh,
		RightV: rv,
		AvgH:   (lh + rh) / 2,
		AvgV:   (lv + rv) / 2,
	}, true
}

func irisOffset(set geometry.LandmarkSet, iris, outer, inner int) (h, v float64, ok bool) {
	ip, _ := set.At(iris)
	op, _ := set.At(outer)
	np, _ := set.At(inner)
	width := geometry.Distance(op, np)
	if width < 1e-6 {
		return 0, 0, false
	}
	mid := geometry.Midpoint(op, np)
	return (ip.X - mid.X) / width, (ip.Y - mid.Y) / width, true
}

// absDiff is a small helper for tolerance checks.
func absDiff(a, b float64) float64 {
	return math.Abs(a - b)
}
