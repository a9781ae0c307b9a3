package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/sheldongordon4/coherence-engine/internal/adapters/http/api"
	"github.com/sheldongordon4/coherence-engine/internal/adapters/http/swagger"
	service "github.com/sheldongordon4/coherence-engine/internal/app"
	"github.com/sheldongordon4/coherence-engine/internal/config"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			// Test with environment variables
			_ = os.Setenv("COHERENCE_ADDR", ":8080")
			_ = os.Setenv("COHERENCE_QUEUE_SIZE", "1000")
			_ = os.Setenv("COHERENCE_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("COHERENCE_ADDR")
				_ = os.Unsetenv("COHERENCE_QUEUE_SIZE")
				_ = os.Unsetenv("COHERENCE_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with a nil config", func() {
				svc := service.New(nil)
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable from loaded defaults", func() {
				svc := service.New(config.New())
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := service.New(config.New())
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc, nil)
				convey.So(server, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				// Use a custom registry to avoid duplicate registration issues
				registry := prometheus.NewRegistry()
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		convey.Convey("When testing full application setup", func() {
			// Set up test environment
			_ = os.Setenv("COHERENCE_ADDR", ":8080")
			_ = os.Setenv("COHERENCE_QUEUE_SIZE", "1000")
			_ = os.Setenv("COHERENCE_WORKER_COUNT", "2")
			defer func() {
				_ = os.Unsetenv("COHERENCE_ADDR")
				_ = os.Unsetenv("COHERENCE_QUEUE_SIZE")
				_ = os.Unsetenv("COHERENCE_WORKER_COUNT")
			}()

			convey.Convey("Then all components should wire together", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				// Load configuration
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)

				// Create service (without starting to avoid background loops)
				svc := service.New(cfg)
				convey.So(svc, convey.ShouldNotBeNil)

				// Create HTTP server with the configured options
				server := api.NewServer(svc, svc, nil,
					api.WithVersion(cfg.EngineVersion),
					api.WithDefaultWindow(cfg.DefaultWindow),
					api.WithDefaultSignal(cfg.DefaultSignal),
					api.WithHistoryLimit(cfg.HistoryLimit),
					api.WithIncludeLegacy(cfg.IncludeLegacy),
					api.WithCORSOrigins(cfg.CORSAllowedOrigins),
				)
				convey.So(server, convey.ShouldNotBeNil)

				// Register routes
				router := mux.NewRouter()
				swagger.Register(ctx, router)
				server.Register(ctx, router)

				// Wrap with the CORS handler
				handler := server.Handler(router)
				convey.So(handler, convey.ShouldNotBeNil)

				// Stop service (never started; must be a no-op)
				svc.Stop()
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			// Set invalid configuration
			_ = os.Setenv("COHERENCE_ADDR", "")
			defer func() { _ = os.Unsetenv("COHERENCE_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing an unreadable config file", func() {
			_ = os.Setenv("COHERENCE_CONFIG", "does-not-exist.yaml")
			defer func() { _ = os.Unsetenv("COHERENCE_CONFIG") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestMainApplicationConcurrency(t *testing.T) {
	convey.Convey("Given main application concurrency", t, func() {
		convey.Convey("When testing concurrent component creation", func() {
			numGoroutines := 10
			done := make(chan bool, numGoroutines)

			for i := 0; i < numGoroutines; i++ {
				go func(id int) {
					defer func() {
						if r := recover(); r != nil {
							t.Logf("Goroutine %d panicked: %v", id, r)
						}
						done <- true
					}()

					svc := service.New(config.New())
					if svc == nil {
						t.Errorf("Goroutine %d: service creation failed", id)
						return
					}

					server := api.NewServer(svc, svc, nil)
					if server == nil {
						t.Errorf("Goroutine %d: HTTP server creation failed", id)
						return
					}

					registry := prometheus.NewRegistry()
					manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
					if manager == nil {
						t.Errorf("Goroutine %d: metrics manager creation failed", id)
					}
				}(i)
			}

			for i := 0; i < numGoroutines; i++ {
				<-done
			}

			convey.Convey("Then all components should be created successfully", func() {
				convey.So(true, convey.ShouldBeTrue)
			})
		})
	})
}
