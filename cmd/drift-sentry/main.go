package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/adapters/ingest"
	"github.com/sheldongordon4/coherence-engine/internal/config"
	"github.com/sheldongordon4/coherence-engine/internal/domain/coherence"
	"github.com/sheldongordon4/coherence-engine/internal/sentry"
)

// runTimeout bounds one evaluation run end to end.
const runTimeout = 10 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	var (
		window         = flag.String("window", sentry.DefaultWindow, "Evaluation window: 30s, 5m, 1h, 24h, or bare seconds")
		outputDir      = flag.String("output-dir", sentry.DefaultOutputDir, "Directory for incident artifacts")
		source         = flag.String("source", sentry.DefaultSource, "Series source: upstream or mock")
		signalID       = flag.String("signal", "", "Evaluate a single signal id (default: every signal the source reports)")
		minLevel       = flag.String("min-level", sentry.DefaultMinLevel, "Minimum finding severity that triggers emission: low, medium, high")
		dryRun         = flag.Bool("dry-run", false, "Log the would-be incident without writing an artifact")
		failOnCritical = flag.Bool("fail-on-critical", false, "Exit with code 2 when any emitted finding is high")
		configPath     = flag.String("config", "", "Path to a YAML or TOML configuration file")
		quiet          = flag.Bool("quiet", false, "Suppress the artifact path on stdout and only log errors")
		help           = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		sentry.ShowHelp()
		return sentry.ExitOK
	}

	// Setup logging
	if err := sentry.SetupLogging(*quiet); err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		return sentry.ExitFailure
	}

	// Cancel on SIGINT/SIGTERM and bound the whole run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	// The -config flag routes through the same loader as the server.
	if *configPath != "" {
		if err := os.Setenv("COHERENCE_CONFIG", *configPath); err != nil {
			os.Stderr.WriteString("failed to set config path: " + err.Error() + "\n")
			return sentry.ExitFailure
		}
	}
	appCfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return sentry.ExitFailure
	}

	engine := coherence.NewEngine(
		coherence.WithRiskThresholds(appCfg.WarnThreshold, appCfg.CriticalThreshold),
		coherence.WithTrendSensitivity(appCfg.TrendSensitivity),
		coherence.WithNeutralStability(appCfg.NeutralStability),
		coherence.WithStabilityBands(appCfg.StabilityHighMin, appCfg.StabilityMediumMin),
	)

	runCfg := &sentry.Config{
		Window:         *window,
		OutputDir:      *outputDir,
		Source:         *source,
		Signal:         *signalID,
		MinLevel:       *minLevel,
		DryRun:         *dryRun,
		FailOnCritical: *failOnCritical,
		Quiet:          *quiet,
		EngineVersion:  appCfg.EngineVersion,
	}

	src, err := buildSource(runCfg.Source, appCfg)
	if err != nil {
		os.Stderr.WriteString("failed to build series source: " + err.Error() + "\n")
		return sentry.ExitFailure
	}

	runner, err := sentry.New(runCfg, engine, src)
	if err != nil {
		os.Stderr.WriteString("invalid run settings: " + err.Error() + "\n")
		return sentry.ExitFailure
	}

	result, err := runner.Run(ctx)
	if err != nil {
		os.Stderr.WriteString("run failed: " + err.Error() + "\n")
		return sentry.ExitFailure
	}

	if !*quiet && result.ArtifactPath != "" {
		os.Stdout.WriteString(result.ArtifactPath + "\n")
	}

	return result.ExitCode
}

// buildSource selects the series provider for the run.
func buildSource(name string, cfg *config.Config) (sentry.SeriesSource, error) {
	if strings.EqualFold(strings.TrimSpace(name), sentry.SourceUpstream) {
		client, err := ingest.NewDarshanClient(
			cfg.DarshanBaseURL,
			cfg.DarshanAPIKey,
			ingest.WithTimeout(time.Duration(cfg.DarshanTimeoutS)*time.Second),
			ingest.WithPageSize(cfg.DarshanPageSize),
			ingest.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
			ingest.WithDefaultSignal(cfg.DefaultSignal),
		)
		if err != nil {
			return nil, err
		}
		return sentry.NewProviderSource(client), nil
	}

	return sentry.NewProviderSource(ingest.NewMockProvider(cfg.MockPath,
		ingest.WithMockSignal(cfg.DefaultSignal),
	)), nil
}
