package repository_test

import (
	"context"
	"testing"

	"github.com/okian/vigil/internal/adapters/repository"
	"github.com/okian/vigil/internal/domain/behavior"
	"github.com/okian/vigil/internal/domain/identity"
	"github.com/smartystreets/goconvey/convey"
)

func validRecord() repository.Record {
	mean := make(identity.Vector, identity.VectorLen)
	variance := make(identity.Vector, identity.VectorLen)
	for i := range mean {
		mean[i] = 0.5
		variance[i] = 0.01
	}
	return repository.Record{
		Baseline: identity.Baseline{Mean: mean, Variance: variance},
		Calibration: behavior.CalibrationData{
			Calibrated:  true,
			BaseEyeOpen: 0.1,
			Tolerances:  behavior.DefaultTolerances(),
		},
	}
}

func TestMemoryStore(t *testing.T) {
	convey.Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		convey.Convey("When a record is saved and loaded", func() {
			rec := validRecord()
			convey.So(store.Save(ctx, "token-1", rec), convey.ShouldBeNil)

			got, err := store.Load(ctx, "token-1")

			convey.Convey("Then the record round-trips", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Baseline.Mean, convey.ShouldResemble, rec.Baseline.Mean)
				convey.So(got.Calibration.Calibrated, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading an unknown token", func() {
			_, err := store.Load(ctx, "missing")

			convey.So(err, convey.ShouldWrap, repository.ErrNotFound)
		})

		convey.Convey("When a stored record fails schema validation", func() {
			bad := validRecord()
			bad.Baseline.Mean = bad.Baseline.Mean[:3]
			convey.So(store.Save(ctx, "token-1", bad), convey.ShouldBeNil)

			_, err := store.Load(ctx, "token-1")

			convey.Convey("Then it is reported as not found", func() {
				convey.So(err, convey.ShouldWrap, repository.ErrNotFound)
			})
		})

		convey.Convey("When a record is deleted", func() {
			convey.So(store.Save(ctx, "token-1", validRecord()), convey.ShouldBeNil)
			convey.So(store.Delete(ctx, "token-1"), convey.ShouldBeNil)

			_, err := store.Load(ctx, "token-1")
			convey.So(err, convey.ShouldWrap, repository.ErrNotFound)
		})

		convey.Convey("When deleting an absent record", func() {
			convey.So(store.Delete(ctx, "missing"), convey.ShouldBeNil)
		})

		convey.Convey("When the store closes", func() {
			convey.So(store.Close(), convey.ShouldBeNil)
		})
	})
}

func TestBadgerStore(t *testing.T) {
	convey.Convey("Given a badger store in a temp directory", t, func() {
		ctx := context.Background()
		store, err := repository.NewBadgerStore(t.TempDir())
		convey.So(err, convey.ShouldBeNil)
		defer store.Close()

		convey.Convey("When a record is saved and loaded", func() {
			rec := validRecord()
			convey.So(store.Save(ctx, "token-1", rec), convey.ShouldBeNil)

			got, err := store.Load(ctx, "token-1")

			convey.Convey("Then the record survives serialization", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Baseline.Mean, convey.ShouldResemble, rec.Baseline.Mean)
				convey.So(got.Baseline.Variance, convey.ShouldResemble, rec.Baseline.Variance)
				convey.So(got.Calibration.Tolerances, convey.ShouldResemble, rec.Calibration.Tolerances)
			})
		})

		convey.Convey("When loading an unknown token", func() {
			_, err := store.Load(ctx, "missing")

			convey.So(err, convey.ShouldWrap, repository.ErrNotFound)
		})

		convey.Convey("When a record is overwritten", func() {
			first := validRecord()
			convey.So(store.Save(ctx, "token-1", first), convey.ShouldBeNil)

			second := validRecord()
			second.Baseline.Mean[0] = 0.9
			convey.So(store.Save(ctx, "token-1", second), convey.ShouldBeNil)

			got, err := store.Load(ctx, "token-1")
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Baseline.Mean[0], convey.ShouldEqual, 0.9)
		})

		convey.Convey("When a record is deleted", func() {
			convey.So(store.Save(ctx, "token-1", validRecord()), convey.ShouldBeNil)
			convey.So(store.Delete(ctx, "token-1"), convey.ShouldBeNil)

			_, err := store.Load(ctx, "token-1")
			convey.So(err, convey.ShouldWrap, repository.ErrNotFound)
		})
	})
}
