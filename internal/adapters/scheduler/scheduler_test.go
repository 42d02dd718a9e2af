package scheduler_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/adapters/mq/queue"
	"github.com/okian/vigil/internal/adapters/scheduler"
	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/geometry"
	"github.com/okian/vigil/internal/domain/identity"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// recordingSink captures everything handed to it.
type recordingSink struct {
	mu         sync.Mutex
	violations []model.Violation
	evidence   []model.Evidence
}

func (s *recordingSink) Report(_ context.Context, _ string, v model.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, v)
	return nil
}

func (s *recordingSink) UploadEvidence(_ context.Context, ev model.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence = append(s.evidence, ev)
	return nil
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.violations), len(s.evidence)
}

// genuineFace builds a full mesh carrying the identity feature landmarks.
func genuineFace() geometry.LandmarkSet {
	set := make(geometry.LandmarkSet, geometry.MeshSize)
	for i := range set {
		set[i] = geometry.Point{X: 0.5, Y: 0.5}
	}
	set[geometry.LeftBrow] = geometry.Point{X: 0.38, Y: 0.33}
	set[geometry.RightBrow] = geometry.Point{X: 0.62, Y: 0.33}
	set[geometry.LeftEyeOuter] = geometry.Point{X: 0.35, Y: 0.40}
	set[geometry.LeftEyeInner] = geometry.Point{X: 0.44, Y: 0.40}
	set[geometry.RightEyeInner] = geometry.Point{X: 0.56, Y: 0.40}
	set[geometry.RightEyeOuter] = geometry.Point{X: 0.65, Y: 0.40}
	set[geometry.NoseTip] = geometry.Point{X: 0.50, Y: 0.52}
	set[geometry.UpperLip] = geometry.Point{X: 0.50, Y: 0.62}
	set[geometry.LowerLip] = geometry.Point{X: 0.50, Y: 0.64}
	set[geometry.MouthLeft] = geometry.Point{X: 0.43, Y: 0.63}
	set[geometry.MouthRight] = geometry.Point{X: 0.57, Y: 0.63}
	set[geometry.Chin] = geometry.Point{X: 0.50, Y: 0.75}
	return set
}

// impostorFace shifts the mouth and chin far enough that the Mahalanobis
// distance against a genuine baseline crosses the fail threshold.
func impostorFace() geometry.LandmarkSet {
	set := genuineFace()
	set[geometry.MouthLeft].X -= 0.05
	set[geometry.MouthRight].X += 0.05
	set[geometry.Chin].Y += 0.05
	return set
}

func genuineBaseline() (identity.Baseline, behavior.CalibrationData) {
	samples := make([]identity.Vector, 0, 3)
	for i := 0; i < 3; i++ {
		v, err := identity.ExtractFeatures(genuineFace())
		if err != nil {
			panic(err)
		}
		samples = append(samples, v)
	}
	b, err := identity.FitBaseline(samples)
	if err != nil {
		panic(err)
	}
	return b, behavior.CalibrationData{Tolerances: behavior.DefaultTolerances()}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool, deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestFrameLoop(t *testing.T) {
	convey.Convey("Given a running loop without calibration", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mailbox := queue.NewInMemoryMailbox()
		loop := scheduler.NewLoop("session-1", mailbox)
		go loop.Run(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
			defer stopCancel()
			_ = loop.Shutdown(stopCtx)
		}()

		convey.Convey("When faceless frames stream in", func() {
			ts := time.Now()
			for i := 0; i < 5; i++ {
				ts = ts.Add(time.Millisecond)
				mailbox.Offer(ctx, model.Frame{
					FrameID:   "f" + string(rune('0'+i)),
					Token:     "session-1",
					Timestamp: ts,
				})
				time.Sleep(20 * time.Millisecond)
			}

			convey.Convey("Then the suspicion counter climbs", func() {
				ok := eventually(func() bool {
					return loop.Snapshot().Counter > 0
				}, 2*time.Second)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When no baseline exists", func() {
			convey.Convey("Then the drift status stays pre-baseline", func() {
				convey.So(loop.Snapshot().DriftStatus, convey.ShouldEqual, identity.StatusNone)
			})
		})
	})
}

func TestDriftViolation(t *testing.T) {
	convey.Convey("Given a calibrated loop watching an impostor", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		baseline, cal := genuineBaseline()
		sink := &recordingSink{}
		var cbMu sync.Mutex
		var callbacks []model.Violation

		mailbox := queue.NewInMemoryMailbox()
		loop := scheduler.NewLoop("session-1", mailbox,
			scheduler.WithCalibration(baseline, cal),
			scheduler.WithSink(sink),
			scheduler.WithDriftInterval(20*time.Millisecond),
			scheduler.WithWatchdog(identity.NewWatchdog(
				identity.WithWindowSize(3),
				identity.WithTripCount(2),
			)),
			scheduler.WithViolationCallback(func(v model.Violation) {
				cbMu.Lock()
				defer cbMu.Unlock()
				callbacks = append(callbacks, v)
			}),
		)
		go loop.Run(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
			defer stopCancel()
			_ = loop.Shutdown(stopCtx)
		}()

		convey.Convey("When impostor frames arrive", func() {
			mailbox.Offer(ctx, model.Frame{
				FrameID:   "f1",
				Token:     "session-1",
				Faces:     []geometry.LandmarkSet{impostorFace()},
				Timestamp: time.Now(),
			})

			convey.Convey("Then impersonation is flagged and reported once", func() {
				tripped := eventually(func() bool {
					return loop.Snapshot().DriftStatus == identity.StatusFail
				}, 3*time.Second)
				convey.So(tripped, convey.ShouldBeTrue)

				reported := eventually(func() bool {
					v, _ := sink.counts()
					return v >= 1
				}, time.Second)
				convey.So(reported, convey.ShouldBeTrue)

				// The dwell latch holds while the state persists.
				time.Sleep(150 * time.Millisecond)
				v, _ := sink.counts()
				convey.So(v, convey.ShouldEqual, 1)

				cbMu.Lock()
				defer cbMu.Unlock()
				convey.So(callbacks, convey.ShouldHaveLength, 1)
				convey.So(callbacks[0].Type, convey.ShouldEqual, model.ViolationImpersonation)
			})
		})
	})
}

func TestEvidenceCapture(t *testing.T) {
	convey.Convey("Given a loop whose warning threshold is low", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sink := &recordingSink{}
		mailbox := queue.NewInMemoryMailbox()
		loop := scheduler.NewLoop("session-1", mailbox,
			scheduler.WithSink(sink),
			scheduler.WithAggregator(behavior.NewAggregator(
				behavior.WithLevelThresholds(2, 4),
			)),
		)
		go loop.Run(ctx)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
			defer stopCancel()
			_ = loop.Shutdown(stopCtx)
		}()

		convey.Convey("When faceless frames with snapshots push it to warning", func() {
			uploaded := eventually(func() bool {
				mailbox.Offer(ctx, model.Frame{
					FrameID:   "f",
					Token:     "session-1",
					Snapshot:  []byte{0x89, 0x50},
					Timestamp: time.Now(),
				})
				_, ev := sink.counts()
				return ev >= 1
			}, 3*time.Second)

			convey.Convey("Then one snapshot is uploaded", func() {
				convey.So(uploaded, convey.ShouldBeTrue)

				// The minimum interval blocks a second capture this soon.
				time.Sleep(150 * time.Millisecond)
				_, ev := sink.counts()
				convey.So(ev, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestShutdown(t *testing.T) {
	convey.Convey("Given a running loop", t, func() {
		ctx := context.Background()
		mailbox := queue.NewInMemoryMailbox()
		loop := scheduler.NewLoop("session-1", mailbox)
		go loop.Run(ctx)

		convey.Convey("When Shutdown is called twice", func() {
			stopCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			convey.Convey("Then both calls succeed", func() {
				convey.So(loop.Shutdown(stopCtx), convey.ShouldBeNil)
				convey.So(loop.Shutdown(stopCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestSetCalibration(t *testing.T) {
	convey.Convey("Given a loop whose watchdog has tripped", t, func() {
		watchdog := identity.NewWatchdog(identity.WithTripCount(1))
		watchdog.Observe(10.0)

		mailbox := queue.NewInMemoryMailbox()
		loop := scheduler.NewLoop("session-1", mailbox,
			scheduler.WithWatchdog(watchdog),
		)
		convey.So(loop.Snapshot().DriftStatus, convey.ShouldEqual, identity.StatusFail)

		convey.Convey("When a fresh calibration is installed", func() {
			baseline, cal := genuineBaseline()
			loop.SetCalibration(baseline, cal)

			convey.Convey("Then drift state is reset", func() {
				convey.So(loop.Snapshot().DriftStatus, convey.ShouldEqual, identity.StatusNone)
			})
		})
	})
}
