package model_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	model "github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

func TestObservationValidate(t *testing.T) {
	convey.Convey("Given observation invariants", t, func() {
		base := model.Observation{
			Signal: "sensor_A",
			TS:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Value:  0.84,
		}

		convey.Convey("When the observation is well formed", func() {
			convey.So(base.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the signal id is empty", func() {
			o := base
			o.Signal = ""
			convey.So(errors.Is(o.Validate(), model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("When the timestamp is zero", func() {
			o := base
			o.TS = time.Time{}
			convey.So(errors.Is(o.Validate(), model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("When the value is NaN", func() {
			o := base
			o.Value = math.NaN()
			convey.So(errors.Is(o.Validate(), model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("When the value is infinite", func() {
			o := base
			o.Value = math.Inf(1)
			convey.So(errors.Is(o.Validate(), model.ErrValidation), convey.ShouldBeTrue)

			o.Value = math.Inf(-1)
			convey.So(errors.Is(o.Validate(), model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("When the value is negative but finite", func() {
			o := base
			o.Value = -3.5
			convey.So(o.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestParseSpan(t *testing.T) {
	convey.Convey("Given named span strings", t, func() {
		convey.Convey("When the span carries a unit suffix", func() {
			for span, want := range map[string]time.Duration{
				"30s": 30 * time.Second,
				"5m":  5 * time.Minute,
				"1h":  time.Hour,
				"24h": 24 * time.Hour,
			} {
				d, err := model.ParseSpan(span)
				convey.So(err, convey.ShouldBeNil)
				convey.So(d, convey.ShouldEqual, want)
			}
		})

		convey.Convey("When the span is bare digits", func() {
			d, err := model.ParseSpan("86400")
			convey.So(err, convey.ShouldBeNil)
			convey.So(d, convey.ShouldEqual, 24*time.Hour)
		})

		convey.Convey("When the span has stray case or spacing", func() {
			d, err := model.ParseSpan("  24H ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(d, convey.ShouldEqual, 24*time.Hour)
		})

		convey.Convey("When the span is malformed", func() {
			for _, span := range []string{"", "abc", "-5s", "0", "1.5h", "h"} {
				_, err := model.ParseSpan(span)
				convey.So(errors.Is(err, model.ErrInvalidWindow), convey.ShouldBeTrue)
			}
		})
	})
}

func TestSpanLabel(t *testing.T) {
	convey.Convey("Given durations to pretty-print", t, func() {
		convey.So(model.SpanLabel(24*time.Hour), convey.ShouldEqual, "24h")
		convey.So(model.SpanLabel(time.Hour), convey.ShouldEqual, "1h")
		convey.So(model.SpanLabel(5*time.Minute), convey.ShouldEqual, "5m")
		convey.So(model.SpanLabel(45*time.Second), convey.ShouldEqual, "45s")
		convey.So(model.SpanLabel(90*time.Second), convey.ShouldEqual, "90s")
	})
}

func TestNewWindow(t *testing.T) {
	convey.Convey("Given a pinned window end", t, func() {
		end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		convey.Convey("When building a 24h window", func() {
			w, err := model.NewWindow("24h", end)
			convey.So(err, convey.ShouldBeNil)
			convey.So(w.End, convey.ShouldEqual, end)
			convey.So(w.Start, convey.ShouldEqual, end.Add(-24*time.Hour))
			convey.So(w.Label, convey.ShouldEqual, "24h")
			convey.So(w.Seconds(), convey.ShouldEqual, 86400)
		})

		convey.Convey("When testing the half-open bounds", func() {
			w, err := model.NewWindow("1h", end)
			convey.So(err, convey.ShouldBeNil)
			convey.So(w.Contains(w.Start), convey.ShouldBeTrue)
			convey.So(w.Contains(w.End), convey.ShouldBeFalse)
			convey.So(w.Contains(w.End.Add(-time.Nanosecond)), convey.ShouldBeTrue)
			convey.So(w.Contains(w.Start.Add(-time.Nanosecond)), convey.ShouldBeFalse)
		})

		convey.Convey("When the span is invalid", func() {
			_, err := model.NewWindow("later", end)
			convey.So(errors.Is(err, model.ErrInvalidWindow), convey.ShouldBeTrue)
		})

		convey.Convey("When the end is zero it defaults to now", func() {
			before := time.Now().UTC()
			w, err := model.NewWindow("5m", time.Time{})
			after := time.Now().UTC()
			convey.So(err, convey.ShouldBeNil)
			convey.So(w.End.Before(before), convey.ShouldBeFalse)
			convey.So(w.End.After(after), convey.ShouldBeFalse)
		})
	})
}

func TestFindingEntry(t *testing.T) {
	convey.Convey("Given a finding to persist", t, func() {
		f := model.Finding{
			Signal: "sensor_A",
			Metric: types.MetricVolatility,
			Value:  0.271349,
			Level:  types.RiskHigh,
		}

		entry := f.Entry()

		convey.Convey("Then the entry uses the artifact spelling", func() {
			convey.So(entry.Signal, convey.ShouldEqual, "sensor_A")
			convey.So(entry.Metric, convey.ShouldEqual, "volatility")
			convey.So(entry.Value, convey.ShouldEqual, 0.2713)
			convey.So(entry.Level, convey.ShouldEqual, "HIGH")
		})
	})
}

func TestNewIncidentShape(t *testing.T) {
	convey.Convey("Given an assembled incident", t, func() {
		createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		findings := []model.Finding{
			{Signal: "sensor_A", Metric: types.MetricVolatility, Value: 0.27, Level: types.RiskHigh},
			{Signal: "sensor_A", Metric: types.MetricStability, Value: 0.73, Level: types.RiskLow},
		}

		inc := model.NewIncident("24h", findings, "0.2.0", "coherence_engine_v0.2.0", "darshan", createdAt)

		convey.Convey("Then the envelope fields are fixed", func() {
			convey.So(inc.Kind, convey.ShouldEqual, "drift_incident")
			convey.So(inc.Window, convey.ShouldEqual, "24h")
			convey.So(inc.Automation.Name, convey.ShouldEqual, "drift_sentry")
			convey.So(inc.Automation.Version, convey.ShouldEqual, "0.2.0")
			convey.So(inc.Trace.Upstream, convey.ShouldEqual, "darshan")
			convey.So(len(inc.Assessment), convey.ShouldEqual, 2)
		})

		convey.Convey("Then the persisted JSON carries the exact keys", func() {
			raw, err := json.Marshal(inc)
			convey.So(err, convey.ShouldBeNil)

			var decoded map[string]any
			convey.So(json.Unmarshal(raw, &decoded), convey.ShouldBeNil)
			for _, key := range []string{"kind", "created_at", "window", "assessment", "automation", "trace"} {
				_, ok := decoded[key]
				convey.So(ok, convey.ShouldBeTrue)
			}

			convey.So(decoded["created_at"].(string), convey.ShouldEqual, "2024-03-01T12:00:00Z")
			convey.So(strings.HasSuffix(decoded["created_at"].(string), "Z"), convey.ShouldBeTrue)

			entry := decoded["assessment"].([]any)[0].(map[string]any)
			convey.So(entry["signal"], convey.ShouldEqual, "sensor_A")
			convey.So(entry["metric"], convey.ShouldEqual, "volatility")
			convey.So(entry["level"], convey.ShouldEqual, "HIGH")
		})
	})
}

func TestRound4(t *testing.T) {
	convey.Convey("Given values to round for persistence", t, func() {
		convey.So(model.Round4(0.123449), convey.ShouldEqual, 0.1234)
		convey.So(model.Round4(0.123456), convey.ShouldEqual, 0.1235)
		convey.So(model.Round4(-0.00006), convey.ShouldEqual, -0.0001)
		convey.So(model.Round4(1.0), convey.ShouldEqual, 1.0)
	})
}
