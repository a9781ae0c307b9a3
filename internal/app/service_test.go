package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/sheldongordon4/coherence-engine/internal/app"
	"github.com/sheldongordon4/coherence-engine/internal/config"
	"github.com/sheldongordon4/coherence-engine/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init("service-test"); err != nil {
		panic(err)
	}
}

// testConfig returns a mock-mode configuration that keeps background loops
// quiet for the duration of a test.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Mode = config.ModeMock
	cfg.HistoryPath = filepath.Join(t.TempDir(), "history.csv")
	cfg.PollInterval = "1h"
	cfg.PruneInterval = "1h"
	cfg.WorkerCount = 2
	cfg.QueueSize = 64
	return cfg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with a nil config", t, func() {
		svc := service.New(nil)

		Convey("Then it should fall back to defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
		})
	})

	Convey("Given a new service with a custom config", t, func() {
		svc := service.New(testConfig(t))

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(testConfig(t))
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, true)
			})

			Convey("And starting twice should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And the stream hub should be available", func() {
				So(svc.StreamHub(), ShouldNotBeNil)
			})
		})

		Convey("When stopping a started service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, false)
			})

			Convey("And stopping twice should be safe", func() {
				svc.Stop()
			})
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(testConfig(t))
		ctx := context.Background()

		Convey("Then Evaluate should refuse", func() {
			_, _, err := svc.Evaluate(ctx, "coherence", "5m", "req-1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then History should refuse", func() {
			_, err := svc.History(ctx, 10)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then Enqueue should report backpressure", func() {
			ok := svc.Enqueue(ctx, sampleObservation(time.Now().UTC(), 0.9))
			So(ok, ShouldBeFalse)
		})
	})
}

func TestService_Status(t *testing.T) {
	Convey("Given a service", t, func() {
		cfg := testConfig(t)
		cfg.WarnThreshold = 0.10
		cfg.CriticalThreshold = 0.25
		cfg.TrendSensitivity = 0.05
		svc := service.New(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When reading status before start", func() {
			status := svc.Status(ctx)

			Convey("Then it should carry the configured thresholds as strings", func() {
				So(status["mode"], ShouldEqual, config.ModeMock)
				So(status["warn_threshold"], ShouldEqual, "0.1")
				So(status["critical_threshold"], ShouldEqual, "0.25")
				So(status["trend_sensitivity"], ShouldEqual, "0.05")
			})

			Convey("And it should carry a UTC timestamp", func() {
				ts, ok := status["timestamp"].(string)
				So(ok, ShouldBeTrue)
				So(ts, ShouldEndWith, "Z")
			})

			Convey("And runtime fields should be absent", func() {
				_, hasUptime := status["uptime_sec"]
				So(hasUptime, ShouldBeFalse)
			})
		})

		Convey("When reading status after start", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()
			status := svc.Status(ctx)

			Convey("Then runtime fields should be present", func() {
				_, hasUptime := status["uptime_sec"]
				So(hasUptime, ShouldBeTrue)
				So(status["status"], ShouldEqual, "ok")
			})
		})
	})
}
