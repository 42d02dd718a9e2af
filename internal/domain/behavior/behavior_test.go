package behavior_test

import (
	"testing"

	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/geometry"
	"github.com/smartystreets/goconvey/convey"
)

// meshWithIris is the landmark count with iris refinement enabled.
const meshWithIris = 478

// steadyFace builds a front-facing candidate with the irises centered in the
// eyes and the eyes open.
func steadyFace() geometry.LandmarkSet {
	set := make(geometry.LandmarkSet, meshWithIris)
	for i := range set {
		set[i] = geometry.Point{X: 0.5, Y: 0.5}
	}
	set[geometry.LeftBrow] = geometry.Point{X: 0.38, Y: 0.33}
	set[geometry.RightBrow] = geometry.Point{X: 0.62, Y: 0.33}
	set[geometry.LeftEyeOuter] = geometry.Point{X: 0.35, Y: 0.40}
	set[geometry.LeftEyeInner] = geometry.Point{X: 0.44, Y: 0.40}
	set[geometry.RightEyeInner] = geometry.Point{X: 0.56, Y: 0.40}
	set[geometry.RightEyeOuter] = geometry.Point{X: 0.65, Y: 0.40}
	set[geometry.LeftEyeTop] = geometry.Point{X: 0.395, Y: 0.385}
	set[geometry.LeftEyeBottom] = geometry.Point{X: 0.395, Y: 0.415}
	set[geometry.RightEyeTop] = geometry.Point{X: 0.605, Y: 0.385}
	set[geometry.RightEyeBottom] = geometry.Point{X: 0.605, Y: 0.415}
	set[geometry.LeftIrisCenter] = geometry.Point{X: 0.395, Y: 0.40}
	set[geometry.RightIrisCenter] = geometry.Point{X: 0.605, Y: 0.40}
	set[geometry.NoseTip] = geometry.Point{X: 0.50, Y: 0.52}
	set[geometry.UpperLip] = geometry.Point{X: 0.50, Y: 0.62}
	set[geometry.LowerLip] = geometry.Point{X: 0.50, Y: 0.64}
	set[geometry.MouthLeft] = geometry.Point{X: 0.43, Y: 0.63}
	set[geometry.MouthRight] = geometry.Point{X: 0.57, Y: 0.63}
	set[geometry.Chin] = geometry.Point{X: 0.50, Y: 0.75}
	return set
}

func calibrated() behavior.CalibrationData {
	return behavior.DeriveCalibration(
		[]geometry.LandmarkSet{steadyFace(), steadyFace(), steadyFace()},
		behavior.DefaultTolerances(),
	)
}

func TestDeriveCalibration(t *testing.T) {
	convey.Convey("Given calibration frames", t, func() {
		convey.Convey("When deriving from steady faces", func() {
			cal := calibrated()

			convey.Convey("Then the session should be calibrated around center", func() {
				convey.So(cal.Calibrated, convey.ShouldBeTrue)
				convey.So(cal.GazeCenterH, convey.ShouldAlmostEqual, 0, 1e-6)
				convey.So(cal.BaseEyeOpen, convey.ShouldBeGreaterThan, 0)
				convey.So(cal.BaseYawDeg, convey.ShouldAlmostEqual, 0, 1e-6)
			})
		})

		convey.Convey("When every frame is degenerate", func() {
			empty := make(geometry.LandmarkSet, meshWithIris)
			cal := behavior.DeriveCalibration(
				[]geometry.LandmarkSet{empty}, behavior.DefaultTolerances())

			convey.Convey("Then the result is uncalibrated but keeps tolerances", func() {
				convey.So(cal.Calibrated, convey.ShouldBeFalse)
				convey.So(cal.Tolerances, convey.ShouldResemble, behavior.DefaultTolerances())
			})
		})
	})
}

func TestAnalyzer(t *testing.T) {
	convey.Convey("Given an analyzer with all checks enabled", t, func() {
		analyzer := behavior.NewAnalyzer(behavior.DefaultChecks())
		cal := calibrated()

		convey.Convey("When no face is visible", func() {
			res := analyzer.Analyze(nil, cal)

			convey.Convey("Then the no-face warning always fires", func() {
				convey.So(res.NoFace, convey.ShouldBeTrue)
				convey.So(res.Suspicious(), convey.ShouldBeTrue)
				convey.So(res.Warnings, convey.ShouldContain, "no face detected")
			})
		})

		convey.Convey("When the steady face is analyzed", func() {
			res := analyzer.Analyze([]behavior.Faces{steadyFace()}, cal)

			convey.Convey("Then no warnings fire", func() {
				convey.So(res.Suspicious(), convey.ShouldBeFalse)
				convey.So(res.FaceCount, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When two faces are visible", func() {
			res := analyzer.Analyze([]behavior.Faces{steadyFace(), steadyFace()}, cal)

			convey.So(res.MultipleFaces, convey.ShouldBeTrue)
			convey.So(res.Warnings, convey.ShouldContain, "2 faces detected")
		})

		convey.Convey("When the gaze wanders horizontally", func() {
			face := steadyFace()
			face[geometry.LeftIrisCenter].X += 0.03
			face[geometry.RightIrisCenter].X += 0.03

			res := analyzer.Analyze([]behavior.Faces{face}, cal)

			convey.So(res.Warnings, convey.ShouldContain, "gaze horizontal out of bounds")
		})

		convey.Convey("When the gaze drifts upward", func() {
			face := steadyFace()
			face[geometry.LeftIrisCenter].Y -= 0.03
			face[geometry.RightIrisCenter].Y -= 0.03

			res := analyzer.Analyze([]behavior.Faces{face}, cal)

			convey.So(res.Warnings, convey.ShouldContain, "gaze vertical out of bounds")
			convey.So(res.LookingUp, convey.ShouldBeTrue)
		})

		convey.Convey("When the head turns", func() {
			face := steadyFace()
			face[geometry.NoseTip].X += 0.1

			res := analyzer.Analyze([]behavior.Faces{face}, cal)

			convey.So(res.Head.Moving, convey.ShouldBeTrue)
			convey.So(res.Warnings, convey.ShouldContain, "head turned left")
		})

		convey.Convey("When the eyes close", func() {
			face := steadyFace()
			face[geometry.LeftEyeTop].Y = 0.399
			face[geometry.LeftEyeBottom].Y = 0.401
			face[geometry.RightEyeTop].Y = 0.399
			face[geometry.RightEyeBottom].Y = 0.401

			res := analyzer.Analyze([]behavior.Faces{face}, cal)

			convey.So(res.EyesClosed, convey.ShouldBeTrue)
			convey.So(res.Warnings, convey.ShouldContain, "eyes closed")
		})

		convey.Convey("When the session is not calibrated", func() {
			face := steadyFace()
			face[geometry.LeftIrisCenter].X += 0.05
			face[geometry.RightIrisCenter].X += 0.05

			res := analyzer.Analyze([]behavior.Faces{face}, behavior.CalibrationData{})

			convey.Convey("Then calibrated checks are skipped", func() {
				convey.So(res.Suspicious(), convey.ShouldBeFalse)
			})

			convey.Convey("But multi-face detection stays active", func() {
				multi := analyzer.Analyze([]behavior.Faces{face, face}, behavior.CalibrationData{})
				convey.So(multi.MultipleFaces, convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given an analyzer with disabled checks", t, func() {
		analyzer := behavior.NewAnalyzer(behavior.Checks{})
		cal := calibrated()

		convey.Convey("When an off-bounds face is analyzed", func() {
			face := steadyFace()
			face[geometry.LeftIrisCenter].X += 0.05
			face[geometry.RightIrisCenter].X += 0.05

			res := analyzer.Analyze([]behavior.Faces{face, face}, cal)

			convey.Convey("Then no check flags anything", func() {
				convey.So(res.Suspicious(), convey.ShouldBeFalse)
				convey.So(res.MultipleFaces, convey.ShouldBeFalse)
			})
		})
	})
}

func TestAggregator(t *testing.T) {
	convey.Convey("Given a suspicion aggregator with defaults", t, func() {
		suspicious := behavior.Result{Warnings: []string{"gaze horizontal out of bounds"}}
		clean := behavior.Result{}

		convey.Convey("When suspicious frames accumulate", func() {
			agg := behavior.NewAggregator()
			var level behavior.Level
			for i := 0; i < 30; i++ {
				level = agg.Update(suspicious)
			}

			convey.Convey("Then the counter saturates at the ceiling", func() {
				convey.So(agg.Counter(), convey.ShouldEqual, 60)
				convey.So(level, convey.ShouldEqual, behavior.LevelWarning)
			})
		})

		convey.Convey("When clean frames follow", func() {
			agg := behavior.NewAggregator()
			for i := 0; i < 30; i++ {
				agg.Update(suspicious)
			}
			var level behavior.Level
			for i := 0; i < 30; i++ {
				level = agg.Update(clean)
			}

			convey.Convey("Then the counter clamps at zero", func() {
				convey.So(agg.Counter(), convey.ShouldEqual, 0)
				convey.So(level, convey.ShouldEqual, behavior.LevelOK)
			})
		})

		convey.Convey("When the counter crosses the thresholds", func() {
			agg := behavior.NewAggregator()

			// warnStep 2: eleven suspicious frames put the counter at 22.
			for i := 0; i < 11; i++ {
				agg.Update(suspicious)
			}
			convey.So(agg.Level(), convey.ShouldEqual, behavior.LevelCaution)

			// Ten more reach 42, past the warning threshold of 40.
			for i := 0; i < 10; i++ {
				agg.Update(suspicious)
			}
			convey.So(agg.Level(), convey.ShouldEqual, behavior.LevelWarning)
		})

		convey.Convey("When recovery is slower than escalation", func() {
			agg := behavior.NewAggregator(behavior.WithSteps(2, 3))
			for i := 0; i < 5; i++ {
				agg.Update(suspicious)
			}
			before := agg.Counter()
			agg.Update(clean)

			convey.So(agg.Counter(), convey.ShouldEqual, before-3)
		})

		convey.Convey("When the aggregator is reset", func() {
			agg := behavior.NewAggregator()
			agg.Update(suspicious)
			agg.Reset()

			convey.So(agg.Counter(), convey.ShouldEqual, 0)
			convey.So(agg.Level(), convey.ShouldEqual, behavior.LevelOK)
		})
	})
}
