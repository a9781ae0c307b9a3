// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Durations are written as window spans ("30s", "5m", "1h", "24h" or bare
//   seconds) so the API, the config file, and the CLI agree on one grammar.
// - Provide New() to build a Config with defaults; Load() layers file and
//   environment on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
)

// Ingestion modes.
const (
	ModeMock = "mock"
	ModeLive = "live"
)

const workerMultiplier = 4

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Mode selects the observation source: mock or live.
	Mode string `koanf:"mode"`

	// EngineVersion is reported in /health, /status, and incident
	// automation blocks.
	EngineVersion string `koanf:"engine_version"`

	// WarnThreshold and CriticalThreshold are inclusive volatility lower
	// bounds for the medium and high risk bands.
	WarnThreshold     float64 `koanf:"warn_threshold"`
	CriticalThreshold float64 `koanf:"critical_threshold"`

	// TrendSensitivity is the relative half-window delta beyond which a
	// trend stops reading steady.
	TrendSensitivity float64 `koanf:"trend_sensitivity"`

	// NeutralStability is reported for windows with no observations.
	NeutralStability float64 `koanf:"neutral_stability"`

	// StabilityHighMin and StabilityMediumMin are inclusive lower bounds
	// for the High and Medium stability bands.
	StabilityHighMin   float64 `koanf:"stability_high_min"`
	StabilityMediumMin float64 `koanf:"stability_medium_min"`

	// DefaultWindow is used when a request names no window span.
	DefaultWindow string `koanf:"default_window"`

	// MaxWindow bounds the largest queryable window; pruning never drops
	// observations such a window ending now could still reach.
	MaxWindow string `koanf:"max_window"`

	// RetentionMargin is extra slack kept beyond MaxWindow when pruning.
	// "0" disables the margin.
	RetentionMargin string `koanf:"retention_margin"`

	// OutOfOrderTolerance is how far behind a signal's latest timestamp an
	// appended observation may fall. "0" demands strict order.
	OutOfOrderTolerance string `koanf:"out_of_order_tolerance"`

	// OverwriteDuplicates makes repeated (signal, timestamp) appends win
	// instead of being rejected.
	OverwriteDuplicates bool `koanf:"overwrite_duplicates"`

	// PruneInterval is how often expired observations are trimmed.
	PruneInterval string `koanf:"prune_interval"`

	// QueueSize bounds the in-memory observation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of store writers. Zero derives a count
	// from the CPU count.
	WorkerCount int `koanf:"worker_count"`

	// PollInterval is how often the upstream provider is asked for new
	// observations.
	PollInterval string `koanf:"poll_interval"`

	// Darshan upstream settings, used in live mode.
	DarshanBaseURL  string `koanf:"darshan_base_url"`
	DarshanAPIKey   string `koanf:"darshan_api_key"`
	DarshanTimeoutS int    `koanf:"darshan_timeout_s"`
	DarshanPageSize int    `koanf:"darshan_page_size"`

	// MockPath points at a JSON fixture for mock mode. Empty switches to
	// the synthetic series.
	MockPath string `koanf:"mock_path"`

	// DefaultSignal is assigned to upstream rows that carry no signal
	// identifier of their own.
	DefaultSignal string `koanf:"default_signal"`

	// RateLimitRPS and RateLimitBurst throttle upstream requests.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// HistoryPath is the CSV file computed results are appended to.
	HistoryPath string `koanf:"history_path"`

	// HistoryLimit caps GET /coherence/history?limit.
	HistoryLimit int `koanf:"history_limit"`

	// IncludeLegacy controls whether legacy mirror fields appear in metric
	// responses by default.
	IncludeLegacy bool `koanf:"include_legacy"`

	// CORSAllowedOrigins configures cross-origin access to the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		Mode:                ModeMock,
		EngineVersion:       "0.1.0",
		WarnThreshold:       0.10,
		CriticalThreshold:   0.25,
		TrendSensitivity:    0.05,
		NeutralStability:    1.0,
		StabilityHighMin:    0.90,
		StabilityMediumMin:  0.75,
		DefaultWindow:       "5m",
		MaxWindow:           "24h",
		RetentionMargin:     "1h",
		OutOfOrderTolerance: "5m",
		OverwriteDuplicates: false,
		PruneInterval:       "1m",
		QueueSize:           8192,
		WorkerCount:         runtime.NumCPU() * workerMultiplier,
		PollInterval:        "30s",
		DarshanTimeoutS:     10,
		DarshanPageSize:     500,
		DefaultSignal:       "coherence",
		RateLimitRPS:        5,
		RateLimitBurst:      5,
		HistoryPath:         "data/history.csv",
		HistoryLimit:        50,
		IncludeLegacy:       true,
		CORSAllowedOrigins:  []string{"*"},
	}
}

// Validate checks invariants across the whole configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.Mode != ModeMock && c.Mode != ModeLive {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeMock, ModeLive, c.Mode)
	}
	if c.WarnThreshold <= 0 || c.CriticalThreshold <= c.WarnThreshold {
		return fmt.Errorf("%w: thresholds must satisfy 0 < warn < critical", ErrInvalidConfig)
	}
	if c.TrendSensitivity < 0 {
		return fmt.Errorf("%w: trend_sensitivity must not be negative", ErrInvalidConfig)
	}
	if c.NeutralStability < 0 || c.NeutralStability > 1 {
		return fmt.Errorf("%w: neutral_stability must be within [0, 1]", ErrInvalidConfig)
	}
	if c.StabilityMediumMin < 0 || c.StabilityHighMin < c.StabilityMediumMin || c.StabilityHighMin > 1 {
		return fmt.Errorf("%w: stability bands must satisfy 0 <= medium <= high <= 1", ErrInvalidConfig)
	}

	for name, span := range map[string]string{
		"default_window": c.DefaultWindow,
		"max_window":     c.MaxWindow,
		"prune_interval": c.PruneInterval,
		"poll_interval":  c.PollInterval,
	} {
		if _, err := model.ParseSpan(span); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}
	for name, span := range map[string]string{
		"retention_margin":       c.RetentionMargin,
		"out_of_order_tolerance": c.OutOfOrderTolerance,
	} {
		if _, err := parseFlexibleSpan(span); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.WorkerCount < 0 {
		return fmt.Errorf("%w: worker_count must not be negative", ErrInvalidConfig)
	}
	if c.Mode == ModeLive && c.DarshanBaseURL == "" {
		return fmt.Errorf("%w: darshan_base_url is required in live mode", ErrInvalidConfig)
	}
	if c.DarshanTimeoutS <= 0 || c.DarshanPageSize <= 0 {
		return fmt.Errorf("%w: darshan timeout and page size must be positive", ErrInvalidConfig)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("%w: history_path must not be empty", ErrInvalidConfig)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("%w: history_limit must be positive", ErrInvalidConfig)
	}

	return nil
}

// Span helpers. Validate guarantees these parse; errors collapse to zero.

func (c *Config) DefaultWindowDuration() time.Duration {
	d, _ := model.ParseSpan(c.DefaultWindow)
	return d
}

func (c *Config) MaxWindowDuration() time.Duration {
	d, _ := model.ParseSpan(c.MaxWindow)
	return d
}

func (c *Config) RetentionMarginDuration() time.Duration {
	d, _ := parseFlexibleSpan(c.RetentionMargin)
	return d
}

func (c *Config) OutOfOrderToleranceDuration() time.Duration {
	d, _ := parseFlexibleSpan(c.OutOfOrderTolerance)
	return d
}

func (c *Config) PruneIntervalDuration() time.Duration {
	d, _ := model.ParseSpan(c.PruneInterval)
	return d
}

func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := model.ParseSpan(c.PollInterval)
	return d
}

// parseFlexibleSpan reads a window span but also admits "0" for settings
// where disabling is meaningful.
func parseFlexibleSpan(span string) (time.Duration, error) {
	if strings.TrimSpace(span) == "0" {
		return 0, nil
	}
	return model.ParseSpan(span)
}
