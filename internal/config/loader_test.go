package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/okian/vigil/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.Drift.Window, convey.ShouldEqual, 5)
				convey.So(cfg.Suspicion.Max, convey.ShouldEqual, 60)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("VIGIL_ADDR", ":8080")
			_ = os.Setenv("VIGIL_DEDUPE_SIZE", "25000")
			_ = os.Setenv("VIGIL_REPORT_BASE_URL", "http://backend:5000")
			_ = os.Setenv("VIGIL_DRIFT__WINDOW", "7")
			_ = os.Setenv("VIGIL_SUSPICION__MAX", "80")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 25000)
				convey.So(cfg.ReportBaseURL, convey.ShouldEqual, "http://backend:5000")
				convey.So(cfg.Drift.Window, convey.ShouldEqual, 7)
				convey.So(cfg.Suspicion.Max, convey.ShouldEqual, 80)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
badger_dir: "/var/lib/vigil"
dedupe_size: 60000
drift:
  interval_s: 2
  window: 9
  trip_count: 5
suspicion:
  warning_threshold: 50
checks:
  eye_state: false
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("VIGIL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.BadgerDir, convey.ShouldEqual, "/var/lib/vigil")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 60000)
				convey.So(cfg.Drift.IntervalS, convey.ShouldEqual, 2)
				convey.So(cfg.Drift.Window, convey.ShouldEqual, 9)
				convey.So(cfg.Drift.TripCount, convey.ShouldEqual, 5)
				convey.So(cfg.Suspicion.WarningThreshold, convey.ShouldEqual, 50)
				convey.So(cfg.Checks.EyeState, convey.ShouldBeFalse)
				convey.So(cfg.Checks.Gaze, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
dedupe_size: 60000
drift:
  window: 9
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("VIGIL_CONFIG", tmpFile)
			_ = os.Setenv("VIGIL_ADDR", ":8080")
			_ = os.Setenv("VIGIL_DRIFT__WINDOW", "11")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Drift.Window, convey.ShouldEqual, 11)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 60000)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("VIGIL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("VIGIL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("VIGIL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When drift thresholds are inverted", func() {
			_ = os.Setenv("VIGIL_DRIFT__MID_THRESHOLD", "4.0")
			_ = os.Setenv("VIGIL_DRIFT__HIGH_THRESHOLD", "3.0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "high threshold must exceed mid")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the trip count exceeds the window", func() {
			_ = os.Setenv("VIGIL_DRIFT__WINDOW", "3")
			_ = os.Setenv("VIGIL_DRIFT__TRIP_COUNT", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "trip count must fit the window")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			yamlContent := `
addr: ":9090"
suspicion:
  warn_step: 4
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("VIGIL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Suspicion.WarnStep, convey.ShouldEqual, 4)
				convey.So(cfg.Suspicion.ClearStep, convey.ShouldEqual, 3)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.Drift.Window, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("VIGIL_DEDUPE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"VIGIL_CONFIG",
		"VIGIL_ADDR",
		"VIGIL_DEDUPE_SIZE",
		"VIGIL_REPORT_BASE_URL",
		"VIGIL_DRIFT__WINDOW",
		"VIGIL_DRIFT__MID_THRESHOLD",
		"VIGIL_DRIFT__HIGH_THRESHOLD",
		"VIGIL_DRIFT__TRIP_COUNT",
		"VIGIL_SUSPICION__MAX",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "vigil-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
