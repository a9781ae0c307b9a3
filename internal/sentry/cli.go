package sentry

import (
	"fmt"
	"os"

	"github.com/sheldongordon4/coherence-engine/pkg/logger"
)

// SetupLogging initializes the structured logger for a CLI run. Quiet
// runs raise the level so only errors reach the console.
func SetupLogging(quiet bool) error {
	if err := logger.Init("drift-sentry"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if quiet {
		if err := logger.SetLevelString("error"); err != nil {
			return fmt.Errorf("failed to set log level: %w", err)
		}
	}
	return nil
}

// ShowHelp prints usage information for the drift sentry.
func ShowHelp() {
	os.Stdout.WriteString(`Drift Sentry
============

One-shot drift evaluation over a rolling window. Computes per-signal
volatility and stability, classifies each finding against the configured
thresholds, and writes a ledger-ready incident artifact when any finding
meets the minimum severity.

Usage:
  go run cmd/drift-sentry/main.go [options]

Options:
  -window string
        Evaluation window: 30s, 5m, 1h, 24h, or bare seconds (default "24h")
  -output-dir string
        Directory for incident artifacts (default "artifacts/incidents")
  -source string
        Series source: upstream or mock (default "mock")
  -signal string
        Evaluate a single signal id (default: every signal the source reports)
  -min-level string
        Minimum finding severity that triggers emission: low, medium, high (default "low")
  -dry-run
        Log the would-be incident without writing an artifact
  -fail-on-critical
        Exit with code 2 when any emitted finding is high
  -config string
        Path to a YAML or TOML configuration file
  -quiet
        Suppress the artifact path on stdout and only log errors
  -help
        Show this help message

Exit codes:
  0  run completed; incident emitted or nothing met the minimum severity
  1  run failed; no artifact was written
  2  critical finding with -fail-on-critical set

Examples:
  # Evaluate the last 24 hours from the mock provider
  go run cmd/drift-sentry/main.go -source mock

  # Evaluate one hour of upstream data and fail the build on critical drift
  go run cmd/drift-sentry/main.go -window 1h -source upstream -fail-on-critical

  # Preview the incident without writing it
  go run cmd/drift-sentry/main.go -window 5m -dry-run

  # Alert only on warnings and above
  go run cmd/drift-sentry/main.go -min-level medium
`)
}
