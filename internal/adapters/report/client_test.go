package report_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/vigil/internal/adapters/report"
	"github.com/okian/vigil/internal/domain/model"
	"github.com/okian/vigil/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestReport(t *testing.T) {
	convey.Convey("Given a reporting client against a recording backend", t, func() {
		ctx := context.Background()

		type received struct {
			path        string
			contentType string
			body        []byte
		}
		var got received
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			got = received{
				path:        r.URL.Path,
				contentType: r.Header.Get("Content-Type"),
				body:        body,
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := report.NewClient(srv.URL, report.WithTimeout(time.Second))

		convey.Convey("When a violation is reported", func() {
			v := model.Violation{
				ID:        "v-1",
				Type:      model.ViolationImpersonation,
				Details:   "identity drift past threshold",
				Timestamp: time.Now().UTC(),
			}
			err := client.Report(ctx, "token-1", v)

			convey.Convey("Then the backend receives the JSON record", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.path, convey.ShouldEqual, "/api/test/token-1/violations")
				convey.So(got.contentType, convey.ShouldEqual, "application/json")

				var decoded model.Violation
				convey.So(json.Unmarshal(got.body, &decoded), convey.ShouldBeNil)
				convey.So(decoded.Type, convey.ShouldEqual, model.ViolationImpersonation)
				convey.So(decoded.ID, convey.ShouldEqual, "v-1")
			})
		})

		convey.Convey("When evidence is uploaded", func() {
			ev := model.Evidence{
				ID:        "ev-1",
				Token:     "token-1",
				Image:     []byte{0x89, 0x50, 0x4e, 0x47},
				Timestamp: time.Now().UTC(),
			}
			err := client.UploadEvidence(ctx, ev)

			convey.Convey("Then the backend receives a multipart snapshot", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.path, convey.ShouldEqual, "/api/test/token-1/snapshot")
				convey.So(got.contentType, convey.ShouldStartWith, "multipart/form-data")
				convey.So(string(got.body), convey.ShouldContainSubstring, "ev-1.png")
			})
		})
	})
}

func TestReportFailures(t *testing.T) {
	convey.Convey("Given a backend that rejects submissions", t, func() {
		ctx := context.Background()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := report.NewClient(srv.URL, report.WithTimeout(time.Second))

		convey.Convey("When a violation is reported", func() {
			err := client.Report(ctx, "token-1", model.Violation{
				ID:   "v-1",
				Type: model.ViolationNoFace,
			})

			convey.Convey("Then the drop surfaces as sink unavailability", func() {
				convey.So(err, convey.ShouldWrap, report.ErrSinkUnavailable)
			})
		})

		convey.Convey("When failures keep coming", func() {
			var err error
			for i := 0; i < 10; i++ {
				err = client.Report(ctx, "token-1", model.Violation{ID: "v-1"})
			}

			convey.Convey("Then the breaker opens and still fails fast", func() {
				convey.So(err, convey.ShouldWrap, report.ErrSinkUnavailable)
			})
		})
	})

	convey.Convey("Given an unreachable backend", t, func() {
		ctx := context.Background()
		client := report.NewClient("http://127.0.0.1:1", report.WithTimeout(200*time.Millisecond))

		convey.Convey("When evidence is uploaded", func() {
			err := client.UploadEvidence(ctx, model.Evidence{ID: "ev-1", Token: "token-1"})

			convey.So(err, convey.ShouldWrap, report.ErrSinkUnavailable)
		})
	})
}

func TestNopSink(t *testing.T) {
	convey.Convey("Given the discarding sink", t, func() {
		ctx := context.Background()
		var sink report.NopSink

		convey.Convey("When records are submitted", func() {
			convey.So(sink.Report(ctx, "token-1", model.Violation{}), convey.ShouldBeNil)
			convey.So(sink.UploadEvidence(ctx, model.Evidence{}), convey.ShouldBeNil)
		})
	})
}
