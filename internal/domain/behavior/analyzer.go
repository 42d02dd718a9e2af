package behavior

import (
	"fmt"

	"github.com/okian/vigil/internal/domain/geometry"
)

// Faces aliases the landmark set type for one detected face.
// Using the geometry type keeps frame payloads and analysis in one shape.
type Faces = geometry.LandmarkSet

// Gaze holds per-eye and averaged iris offsets relative to the eye-corner
// midpoints, normalized by eye width. Negative H is toward the candidate's
// left; negative V is upward (image y grows downward).
type Gaze struct {
	LeftH  float64 `json:"left_h"`
	LeftV  float64 `json:"left_v"`
	RightH float64 `json:"right_h"`
	RightV float64 `json:"right_v"`
	AvgH   float64 `json:"avg_h"`
	AvgV   float64 `json:"avg_v"`
}

// Head describes head movement relative to the calibrated baseline yaw.
type Head struct {
	Moving    bool    `json:"moving"`
	Direction string  `json:"direction"`
	YawDeg    float64 `json:"yaw_deg"`
}

// Result is the structured outcome of analyzing one frame.
type Result struct {
	NoFace        bool     `json:"no_face"`
	FaceCount     int      `json:"face_count"`
	MultipleFaces bool     `json:"multiple_faces"`
	Gaze          Gaze     `json:"gaze"`
	Head          Head     `json:"head"`
	EyesClosed    bool     `json:"eyes_closed"`
	LookingUp     bool     `json:"looking_up"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Suspicious reports whether the frame carries at least one warning.
func (r Result) Suspicious() bool {
	return len(r.Warnings) > 0
}

// Checks toggles each behavioral check independently. The zero value
// disables everything; use DefaultChecks for the stock set.
type Checks struct {
	Gaze         bool `koanf:"gaze" json:"gaze"`
	HeadMovement bool `koanf:"head_movement" json:"head_movement"`
	MultiFace    bool `koanf:"multi_face" json:"multi_face"`
	EyeState     bool `koanf:"eye_state" json:"eye_state"`
}

// DefaultChecks enables every check.
func DefaultChecks() Checks {
	return Checks{Gaze: true, HeadMovement: true, MultiFace: true, EyeState: true}
}

// eyesClosedRatio: the eyelid gap must fall below this fraction of the
// calibrated opening before the eyes count as closed. Policy constant from
// the original tuning.
const eyesClosedRatio = 0.45

// Analyzer evaluates frames against calibration data. Pure per call: all
// per-session state lives in the aggregator, not here, so one analyzer can
// serve many sessions.
type Analyzer struct {
	checks Checks
}

// NewAnalyzer creates an analyzer with the given check toggles.
func NewAnalyzer(checks Checks) *Analyzer {
	return &Analyzer{checks: checks}
}

// Analyze evaluates the landmark sets of one frame. Zero faces always yields
// the fixed no-face result with maximal warning; absence of a face is never
// silently ignored. Checks that need calibrated tolerances are skipped until
// the session is calibrated; multi-face detection stays active regardless.
func (a *Analyzer) Analyze(faces []Faces, cal CalibrationData) Result {
	if len(faces) == 0 {
		return Result{
			NoFace:   true,
			Warnings: []string{"no face detected"},
		}
	}

	res := Result{FaceCount: len(faces)}
	if a.checks.MultiFace && len(faces) > 1 {
		res.MultipleFaces = true
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d faces detected", len(faces)))
	}

	// All calibrated checks run on the primary (first) face.
	set := faces[0]

	if gaze, ok := gazeOffsets(set); ok {
		res.Gaze = gaze
	}
	if yaw, ok := headYaw(set); ok {
		res.Head.YawDeg = yaw
	}

	if !cal.Calibrated {
		return res
	}
	tol := cal.Tolerances

	if a.checks.Gaze {
		if absDiff(res.Gaze.AvgH, cal.GazeCenterH) > tol.GazeH {
			res.Warnings = append(res.Warnings, "gaze horizontal out of bounds")
		}
		if absDiff(res.Gaze.AvgV, cal.GazeCenterV) > tol.GazeV {
			res.Warnings = append(res.Warnings, "gaze vertical out of bounds")
			if res.Gaze.AvgV < cal.GazeCenterV {
				res.LookingUp = true
			}
		}
	}

	if a.checks.HeadMovement {
		delta := res.Head.YawDeg - cal.BaseYawDeg
		if absDiff(res.Head.YawDeg, cal.BaseYawDeg) > tol.YawDeg {
			res.Head.Moving = true
			if delta > 0 {
				res.Head.Direction = "right"
			} else {
				res.Head.Direction = "left"
			}
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("head turned %s", res.Head.Direction))
		} else {
			res.Head.Direction = "center"
		}
	}

	if a.checks.EyeState {
		if opening, ok := eyeOpening(set); ok {
			if cal.BaseEyeOpen > 0 && opening < cal.BaseEyeOpen*eyesClosedRatio {
				res.EyesClosed = true
				res.Warnings = append(res.Warnings, "eyes closed")
			}
		}
	}

	return res
}
