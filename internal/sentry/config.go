package sentry

import (
	"fmt"
	"strings"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/internal/domain/types"
)

// Series source names accepted by the -source flag.
const (
	SourceUpstream = "upstream"
	SourceMock     = "mock"
)

// Default run settings.
const (
	DefaultWindow    = "24h"
	DefaultOutputDir = "artifacts/incidents"
	DefaultMinLevel  = "low"
	DefaultSource    = SourceMock
)

// Config holds the settings for a single evaluation run.
type Config struct {
	Window         string // evaluation window span: 30s, 5m, 1h, 24h, or bare seconds
	OutputDir      string // directory incident artifacts are written to
	Source         string // series source: upstream or mock
	Signal         string // restrict the run to one signal id (empty = every signal)
	MinLevel       string // minimum finding severity that triggers emission
	DryRun         bool   // log the would-be incident without writing it
	FailOnCritical bool   // exit code 2 when any emitted finding is high
	Quiet          bool   // suppress the artifact path on stdout
	EngineVersion  string // version stamped into the incident automation block
}

// Validate checks the run settings. A dry run tolerates an empty output
// directory because it never touches the filesystem.
func (c *Config) Validate() error {
	if _, err := model.ParseSpan(c.Window); err != nil {
		return fmt.Errorf("window %q: %w", c.Window, ErrInvalidConfig)
	}

	switch strings.ToLower(strings.TrimSpace(c.Source)) {
	case SourceUpstream, SourceMock:
	default:
		return fmt.Errorf("source %q must be %q or %q: %w",
			c.Source, SourceUpstream, SourceMock, ErrInvalidConfig)
	}

	if _, ok := types.ParseRiskLevel(c.MinLevel); !ok {
		return fmt.Errorf("min level %q must be low, medium, or high: %w",
			c.MinLevel, ErrInvalidConfig)
	}

	if !c.DryRun && strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output directory must not be empty: %w", ErrInvalidConfig)
	}

	return nil
}

// MinRiskLevel returns the parsed minimum severity. Call Validate first;
// an unparseable level falls back to low.
func (c *Config) MinRiskLevel() types.RiskLevel {
	if l, ok := types.ParseRiskLevel(c.MinLevel); ok {
		return l
	}
	return types.RiskLow
}
