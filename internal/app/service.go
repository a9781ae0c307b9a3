// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/adapters/history"
	"github.com/sheldongordon4/coherence-engine/internal/adapters/ingest"
	obsqueue "github.com/sheldongordon4/coherence-engine/internal/adapters/pipeline/queue"
	workerpool "github.com/sheldongordon4/coherence-engine/internal/adapters/pipeline/worker"
	"github.com/sheldongordon4/coherence-engine/internal/adapters/repository"
	"github.com/sheldongordon4/coherence-engine/internal/adapters/stream"
	"github.com/sheldongordon4/coherence-engine/internal/config"
	"github.com/sheldongordon4/coherence-engine/internal/domain/coherence"
	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/pkg/logger"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

// ErrNotStarted is returned by read operations before Start has run.
var ErrNotStarted = errors.New("service not started")

// statsInterval is how often runtime gauges are refreshed.
const statsInterval = 10 * time.Second

// shutdownTimeout bounds how long Stop waits for the pipeline to drain.
const shutdownTimeout = 5 * time.Second

// Service implements the API dependencies for the coherence engine.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store        repository.Store
	engine       *coherence.Engine
	queue        *obsqueue.InMemoryQueue
	pool         *workerpool.Pool
	hub          *stream.Hub
	historyStore *history.CSVStore
	provider     ingest.Provider

	// Ingest state for /status
	ingestMu    sync.RWMutex
	ingestState ingestState

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// Logging
	logger logger.Logger

	// Clock is swapped in tests
	clock func() time.Time
}

// ingestState tracks the most recent provider fetch for /status.
type ingestState struct {
	Source       string `json:"source"`
	LastFetch    string `json:"last_fetch,omitempty"`
	LastCount    int    `json:"last_count"`
	LastLatency  int64  `json:"last_latency_ms"`
	PagesFetched int    `json:"pages_fetched"`
	Retries      int    `json:"retries"`
	LastError    string `json:"last_error,omitempty"`
	TotalRecords int64  `json:"total_records"`
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithProvider overrides the observation provider the mode would select.
func WithProvider(p ingest.Provider) Option {
	return func(s *Service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// New constructs a new Service around a validated configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}

	s := &Service{
		cfg:   cfg,
		clock: time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components. Background loops
// run until Stop, not until ctx is done; ctx only scopes startup work.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting coherence service...")

	s.engine = coherence.NewEngine(
		coherence.WithRiskThresholds(s.cfg.WarnThreshold, s.cfg.CriticalThreshold),
		coherence.WithTrendSensitivity(s.cfg.TrendSensitivity),
		coherence.WithNeutralStability(s.cfg.NeutralStability),
		coherence.WithStabilityBands(s.cfg.StabilityHighMin, s.cfg.StabilityMediumMin),
		coherence.WithClock(s.clock),
	)

	s.store = repository.NewSeriesStore(
		repository.WithMaxWindow(s.cfg.MaxWindowDuration()),
		repository.WithRetentionMargin(s.cfg.RetentionMarginDuration()),
		repository.WithOutOfOrderTolerance(s.cfg.OutOfOrderToleranceDuration()),
		repository.WithOverwriteDuplicates(s.cfg.OverwriteDuplicates),
		repository.WithClock(s.clock),
	)

	s.queue = obsqueue.NewInMemoryQueue(
		obsqueue.WithCapacity(s.cfg.QueueSize),
		obsqueue.WithBufferSize(s.cfg.QueueSize),
	)
	s.pool = workerpool.NewPool(s.cfg.WorkerCount, s.queue, s.store)

	historyStore, err := history.NewCSVStore(s.cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	s.historyStore = historyStore

	if s.provider == nil {
		provider, err := s.buildProvider()
		if err != nil {
			return fmt.Errorf("build provider: %w", err)
		}
		s.provider = provider
	}
	s.setIngestSource(s.provider.Name())

	s.hub = stream.NewHub()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.pool.Start(runCtx)
	go s.hub.Run(runCtx)

	s.wg.Add(3)
	go s.pollLoop(runCtx)
	go s.pruneLoop(runCtx)
	go s.statsLoop(runCtx)

	s.started = true
	s.startedAt = s.clock().UTC()
	s.logger.Info(ctx, "coherence service started",
		logger.String("mode", s.cfg.Mode),
		logger.String("provider", s.provider.Name()),
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.String("historyPath", s.cfg.HistoryPath),
	)

	return nil
}

// buildProvider selects the observation source for the configured mode.
func (s *Service) buildProvider() (ingest.Provider, error) {
	if s.cfg.Mode == config.ModeLive {
		client, err := ingest.NewDarshanClient(
			s.cfg.DarshanBaseURL,
			s.cfg.DarshanAPIKey,
			ingest.WithTimeout(time.Duration(s.cfg.DarshanTimeoutS)*time.Second),
			ingest.WithPageSize(s.cfg.DarshanPageSize),
			ingest.WithRateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst),
			ingest.WithDefaultSignal(s.cfg.DefaultSignal),
		)
		if err != nil {
			return nil, fmt.Errorf("darshan client: %w", err)
		}
		return client, nil
	}

	return ingest.NewMockProvider(s.cfg.MockPath,
		ingest.WithMockSignal(s.cfg.DefaultSignal),
		ingest.WithMockClock(s.clock),
	), nil
}

// Stop gracefully shuts down the service. The pipeline drains before the
// background loops are released. Marking the service stopped happens under
// the lock first so no reader touches a component mid-teardown.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool := s.pool
	cancel := s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping coherence service...")

	// Drain buffered observations into the store; Shutdown closes the
	// queue first so workers stop at a defined point.
	if pool != nil {
		drainCtx, drainCancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := pool.Shutdown(drainCtx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
		drainCancel()
	}

	// Release the poll, prune, and stats loops along with the hub.
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.logger.Info(ctx, "coherence service stopped")
}

// Evaluate computes the snapshot for signal over the span ending now. Every
// successful evaluation appends a history row and is broadcast to stream
// subscribers; neither side effect can fail the evaluation itself.
func (s *Service) Evaluate(ctx context.Context, signal, span, requestID string) (model.Snapshot, coherence.Interpretation, error) {
	s.mu.RLock()
	started := s.started
	store, engine := s.store, s.engine
	s.mu.RUnlock()

	if !started {
		return model.Snapshot{}, coherence.Interpretation{}, ErrNotStarted
	}

	window, err := model.NewWindow(span, s.clock())
	if err != nil {
		return model.Snapshot{}, coherence.Interpretation{}, fmt.Errorf("window %q: %w", span, err)
	}

	observations, err := store.Query(ctx, signal, window)
	if err != nil {
		return model.Snapshot{}, coherence.Interpretation{}, fmt.Errorf("query %q: %w", signal, err)
	}

	start := time.Now()
	snap, err := engine.Compute(signal, observations, window)
	if err != nil {
		metrics.RecordComputeError()
		return model.Snapshot{}, coherence.Interpretation{}, fmt.Errorf("compute %q: %w", signal, err)
	}
	metrics.RecordComputeDuration(float64(time.Since(start).Milliseconds()))
	metrics.RecordSnapshotComputed()

	interp := engine.Interpret(snap)

	s.recordHistory(ctx, snap, requestID)
	s.broadcast(ctx, snap, interp)

	return snap, interp, nil
}

// recordHistory appends the evaluation to the CSV ledger. Failures are
// logged and counted, never surfaced to the caller.
func (s *Service) recordHistory(ctx context.Context, snap model.Snapshot, requestID string) {
	row := history.Row{
		TS:        snap.ComputedAt,
		WindowSec: snap.Window.Seconds(),
		N:         snap.N,
		Mean:      snap.Mean,
		Stdev:     snap.Stdev,
		DriftRisk: string(snap.Risk),
		Source:    s.provider.Name(),
		RequestID: requestID,
	}
	if err := s.historyStore.Append(ctx, row); err != nil {
		s.logger.Warn(ctx, "history append failed", logger.Error(err))
	}
}

// broadcast pushes the presentation payload to websocket subscribers.
func (s *Service) broadcast(ctx context.Context, snap model.Snapshot, interp coherence.Interpretation) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastMetrics(ctx, coherence.Present(snap, interp, s.cfg.IncludeLegacy))
}

// Enqueue submits an observation for asynchronous processing.
func (s *Service) Enqueue(ctx context.Context, obs model.Observation) bool {
	s.mu.RLock()
	started := s.started
	q := s.queue
	s.mu.RUnlock()

	if !started {
		return false
	}

	s.logger.Debug(ctx, "received observation",
		logger.String("signal", obs.Signal),
		logger.Time("ts", obs.TS),
		logger.Float64("value", obs.Value),
	)

	return q.Enqueue(ctx, obs)
}

// History returns up to limit of the most recent evaluation rows, oldest
// first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Row, error) {
	s.mu.RLock()
	started := s.started
	store := s.historyStore
	s.mu.RUnlock()

	if !started {
		return nil, ErrNotStarted
	}

	rows, err := store.Latest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("history read: %w", err)
	}
	return rows, nil
}

// StreamHub exposes the websocket hub for route registration.
func (s *Service) StreamHub() *stream.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

// Status reports the effective thresholds and runtime state. Threshold
// values are rendered as strings so clients treat them as opaque.
func (s *Service) Status(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]any{
		"status":             "ok",
		"version":            s.cfg.EngineVersion,
		"mode":               s.cfg.Mode,
		"warn_threshold":     strconv.FormatFloat(s.cfg.WarnThreshold, 'g', -1, 64),
		"critical_threshold": strconv.FormatFloat(s.cfg.CriticalThreshold, 'g', -1, 64),
		"trend_sensitivity":  strconv.FormatFloat(s.cfg.TrendSensitivity, 'g', -1, 64),
		"default_window":     s.cfg.DefaultWindow,
		"timestamp":          s.clock().UTC().Format(time.RFC3339),
	}

	if s.started {
		status["uptime_sec"] = int64(s.clock().UTC().Sub(s.startedAt).Seconds())
		status["queue_depth"] = s.queue.Len(ctx)
		status["store_observations"] = s.store.Len(ctx)
		status["store_signals"] = s.store.Signals(ctx)
		status["stream_clients"] = s.hub.ClientCount(ctx)
		status["ingest"] = s.ingestSnapshot()
	}

	return status
}

// GetStats returns service statistics for monitoring and refreshes the
// runtime gauges as a side effect.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
	}

	if s.started {
		queueDepth := s.queue.Len(ctx)
		storeLen := s.store.Len(ctx)
		clients := s.hub.ClientCount(ctx)

		stats["queueDepth"] = queueDepth
		stats["storeObservations"] = storeLen
		stats["storeSignals"] = len(s.store.Signals(ctx))
		stats["streamClients"] = clients

		// Update metrics
		metrics.UpdateStoreObservations(storeLen)
		metrics.UpdateStreamClients(clients)
		metrics.UpdateWorkerCount(s.cfg.WorkerCount)
	}

	return stats
}

// pollLoop fetches from the provider on the configured interval. The first
// fetch backfills one default window so early evaluations have data.
func (s *Service) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollIntervalDuration())
	defer ticker.Stop()

	last := s.clock().UTC().Add(-s.cfg.DefaultWindowDuration())
	last = s.poll(ctx, last, s.clock().UTC())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last = s.poll(ctx, last, s.clock().UTC())
		}
	}
}

// poll runs one fetch cycle and returns the new high-water mark.
func (s *Service) poll(ctx context.Context, since, until time.Time) time.Time {
	observations, meta, err := s.provider.Fetch(ctx, since, until)
	if err != nil {
		s.logger.Warn(ctx, "ingest fetch failed",
			logger.String("provider", s.provider.Name()),
			logger.Error(err),
		)
		s.updateIngest(func(st *ingestState) {
			st.LastError = err.Error()
			st.Retries += meta.Retries
		})
		return since
	}

	accepted := 0
	for _, obs := range observations {
		if ok := s.queue.Enqueue(ctx, obs); !ok {
			s.logger.Warn(ctx, "observation queue full, dropping fetch remainder",
				logger.Int("dropped", len(observations)-accepted),
			)
			break
		}
		accepted++
	}

	s.updateIngest(func(st *ingestState) {
		st.LastFetch = until.Format(time.RFC3339)
		st.LastCount = accepted
		st.LastLatency = meta.LatencyMS
		st.PagesFetched += meta.PagesFetched
		st.Retries += meta.Retries
		st.LastError = ""
		st.TotalRecords += int64(accepted)
	})

	s.logger.Debug(ctx, "ingest cycle complete",
		logger.Int("fetched", len(observations)),
		logger.Int("accepted", accepted),
		logger.Time("until", until),
	)

	return until
}

// pruneLoop trims observations no queryable window can reach.
func (s *Service) pruneLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PruneIntervalDuration())
	defer ticker.Stop()

	retention := s.cfg.MaxWindowDuration() + s.cfg.RetentionMarginDuration()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.clock().UTC().Add(-retention)
			if removed := s.store.Prune(ctx, cutoff); removed > 0 {
				s.logger.Debug(ctx, "pruned expired observations",
					logger.Int("removed", removed),
					logger.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// statsLoop keeps the runtime gauges warm between scrapes.
func (s *Service) statsLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.GetStats(ctx)
		}
	}
}

func (s *Service) setIngestSource(name string) {
	s.updateIngest(func(st *ingestState) {
		st.Source = name
	})
}

func (s *Service) updateIngest(fn func(*ingestState)) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	fn(&s.ingestState)
}

func (s *Service) ingestSnapshot() ingestState {
	s.ingestMu.RLock()
	defer s.ingestMu.RUnlock()
	return s.ingestState
}
