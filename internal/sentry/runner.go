// Package sentry runs one-shot drift evaluations and emits ledger-ready
// incident artifacts. A run is all-or-nothing: it either completes an
// evaluation pass over every signal and ends as NoFinding or
// IncidentEmitted, or it aborts with no artifact. No state is kept
// across runs; concurrent runs take separate Runners and produce
// independently identified artifacts.
package sentry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/coherence"
	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/internal/domain/types"
	"github.com/sheldongordon4/coherence-engine/pkg/logger"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

// State names a stage in a run's lifecycle. Runs move
// Idle -> Evaluating -> {NoFinding | IncidentEmitted} -> Terminal.
type State string

const (
	StateIdle            State = "idle"
	StateEvaluating      State = "evaluating"
	StateNoFinding       State = "no_finding"
	StateIncidentEmitted State = "incident_emitted"
	StateTerminal        State = "terminal"
)

// Process exit codes for the sentry CLI.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitCritical = 2
)

// traceSourcePrefix is combined with the engine version to form the
// incident trace source, e.g. coherence_engine_v0.1.0.
const traceSourcePrefix = "coherence_engine_v"

const defaultEngineVersion = "0.1.0"

// Stats summarizes one evaluation run.
type Stats struct {
	SignalsEvaluated int
	FindingsTotal    int
	FindingsEmitted  int
	Warnings         int
	Critical         int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Result reports how a run ended. Outcome is the pre-terminal state the
// run passed through: StateNoFinding or StateIncidentEmitted.
type Result struct {
	Outcome      State
	Findings     []model.Finding // findings that met the minimum level
	Incident     *model.Incident // nil for a NoFinding run
	ArtifactPath string          // empty for dry runs and NoFinding runs
	Stats        Stats
	ExitCode     int
}

// Runner executes evaluation runs against a series source. A Runner
// handles one run at a time.
type Runner struct {
	cfg      *Config
	engine   *coherence.Engine
	source   SeriesSource
	emitter  *Emitter
	minLevel types.RiskLevel
	version  string
	state    State
	log      logger.Logger
	now      func() time.Time
}

// New builds a runner for the given settings. The engine carries the
// classification thresholds; the source supplies the series.
func New(cfg *Config, engine *coherence.Engine, source SeriesSource, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("engine must not be nil: %w", ErrInvalidConfig)
	}
	if source == nil {
		return nil, fmt.Errorf("series source must not be nil: %w", ErrInvalidConfig)
	}

	r := &Runner{
		cfg:      cfg,
		engine:   engine,
		source:   source,
		minLevel: cfg.MinRiskLevel(),
		version:  cfg.EngineVersion,
		state:    StateIdle,
		log:      logger.Get().Named("sentry"),
		now:      time.Now,
	}
	if r.version == "" {
		r.version = defaultEngineVersion
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.emitter == nil {
		r.emitter = NewEmitter(cfg.OutputDir, WithEmitterClock(r.now))
	}

	return r, nil
}

// State returns the current lifecycle state. After Run returns it is
// always StateTerminal.
func (r *Runner) State() State {
	return r.state
}

// Run executes one evaluation pass. Any source or compute failure aborts
// the run with no artifact. A dry run ends as IncidentEmitted without
// touching the filesystem.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	stats := Stats{StartTime: r.now().UTC()}
	r.state = StateIdle
	r.transition(ctx, StateEvaluating)

	window, err := model.NewWindow(r.cfg.Window, r.now())
	if err != nil {
		return nil, r.fail(ctx, &stats, fmt.Errorf("window %q: %w", r.cfg.Window, err))
	}

	grouped, upstream, err := r.source.Series(ctx, window)
	if err != nil {
		return nil, r.fail(ctx, &stats, fmt.Errorf("load series: %w", err))
	}

	// A named signal is always evaluated, even when the source returned
	// nothing for it; an empty window is a defined result.
	signals := make([]string, 0, len(grouped))
	for signal := range grouped {
		signals = append(signals, signal)
	}
	sort.Strings(signals)
	if r.cfg.Signal != "" {
		signals = []string{r.cfg.Signal}
	}

	findings := make([]model.Finding, 0, len(signals)*2)
	for _, signal := range signals {
		snap, err := r.engine.Compute(signal, grouped[signal], window)
		if err != nil {
			return nil, r.fail(ctx, &stats, fmt.Errorf("compute signal %q: %w", signal, err))
		}
		findings = append(findings,
			model.Finding{Signal: signal, Metric: types.MetricVolatility, Value: snap.Volatility, Level: snap.Risk},
			model.Finding{Signal: signal, Metric: types.MetricStability, Value: snap.Stability, Level: r.engine.StabilityRisk(snap.Stability)},
		)
	}
	stats.SignalsEvaluated = len(signals)
	stats.FindingsTotal = len(findings)

	emit := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Level.AtLeast(r.minLevel) {
			emit = append(emit, f)
		}
	}
	stats.FindingsEmitted = len(emit)
	for _, f := range emit {
		switch f.Level {
		case types.RiskMedium:
			stats.Warnings++
		case types.RiskHigh:
			stats.Critical++
		}
	}

	if len(emit) == 0 {
		r.transition(ctx, StateNoFinding)
		r.transition(ctx, StateTerminal)
		r.finish(&stats)
		metrics.RecordSentryRun("no_finding")
		r.log.Info(ctx, "no incident emitted",
			logger.String("window", window.Label),
			logger.Int("signals", stats.SignalsEvaluated),
			logger.String("minLevel", string(r.minLevel)))
		r.displayFinalStats(ctx, &stats)
		return &Result{Outcome: StateNoFinding, Stats: stats, ExitCode: ExitOK}, nil
	}

	incident := model.NewIncident(window.Label, emit, r.version,
		traceSourcePrefix+r.version, upstream, r.now())

	if r.cfg.DryRun {
		payload, merr := json.MarshalIndent(incident, "", "  ")
		if merr != nil {
			return nil, r.fail(ctx, &stats, fmt.Errorf("encode incident: %w", merr))
		}
		r.transition(ctx, StateIncidentEmitted)
		r.transition(ctx, StateTerminal)
		r.finish(&stats)
		metrics.RecordSentryRun("dry_run")
		r.log.Info(ctx, "dry run, incident not written",
			logger.String("window", window.Label),
			logger.String("incident", string(payload)))
		r.displayFinalStats(ctx, &stats)
		return &Result{
			Outcome:  StateIncidentEmitted,
			Findings: emit,
			Incident: &incident,
			Stats:    stats,
			ExitCode: r.exitCode(&stats),
		}, nil
	}

	path, err := r.emitter.Write(ctx, incident)
	if err != nil {
		return nil, r.fail(ctx, &stats, err)
	}

	r.transition(ctx, StateIncidentEmitted)
	r.transition(ctx, StateTerminal)
	r.finish(&stats)
	metrics.RecordSentryRun("incident")
	metrics.RecordIncidentEmitted(string(highestLevel(emit)))
	r.log.Info(ctx, "incident emitted",
		logger.String("path", path),
		logger.String("window", window.Label),
		logger.String("upstream", upstream),
		logger.Int("warnings", stats.Warnings),
		logger.Int("critical", stats.Critical))
	r.displayFinalStats(ctx, &stats)

	return &Result{
		Outcome:      StateIncidentEmitted,
		Findings:     emit,
		Incident:     &incident,
		ArtifactPath: path,
		Stats:        stats,
		ExitCode:     r.exitCode(&stats),
	}, nil
}

// transition advances the run state. Transitions are logged at debug so
// a run can be traced without raising the level elsewhere.
func (r *Runner) transition(ctx context.Context, next State) {
	r.log.Debug(ctx, "state transition",
		logger.String("from", string(r.state)),
		logger.String("to", string(next)))
	r.state = next
}

// fail closes out an aborted run: terminal state, failure metric, no
// artifact.
func (r *Runner) fail(ctx context.Context, stats *Stats, err error) error {
	r.transition(ctx, StateTerminal)
	r.finish(stats)
	metrics.RecordSentryRun("failure")
	r.log.Error(ctx, "run aborted", logger.Error(err))
	return fmt.Errorf("%w: %w", ErrEvaluation, err)
}

func (r *Runner) finish(stats *Stats) {
	stats.EndTime = r.now().UTC()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
}

func (r *Runner) exitCode(stats *Stats) int {
	if r.cfg.FailOnCritical && stats.Critical > 0 {
		return ExitCritical
	}
	return ExitOK
}

// displayFinalStats logs the run summary.
func (r *Runner) displayFinalStats(ctx context.Context, stats *Stats) {
	r.log.Info(ctx, "run statistics",
		logger.Int("signalsEvaluated", stats.SignalsEvaluated),
		logger.Int("findingsTotal", stats.FindingsTotal),
		logger.Int("findingsEmitted", stats.FindingsEmitted),
		logger.Int("warnings", stats.Warnings),
		logger.Int("critical", stats.Critical),
		logger.String("duration", stats.Duration.String()))
}

// highestLevel returns the most severe level among the findings.
func highestLevel(findings []model.Finding) types.RiskLevel {
	level := types.RiskLow
	for _, f := range findings {
		if !level.AtLeast(f.Level) {
			level = f.Level
		}
	}
	return level
}
