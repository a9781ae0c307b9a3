// Package worker drains the observation queue into the rolling store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/adapters/repository"
	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/pkg/logger"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Observation abstracts what workers read off the queue.
type Observation = model.Observation

// Appender persists observations.
type Appender interface {
	Append(ctx context.Context, obs model.Observation) error
}

// Queue defines how workers receive observations.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Observation
}

// Worker consumes observations and writes them to the store.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for appending observations.
type InMemoryWorker struct {
	queue    Queue
	appender Appender
	name     string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, appender Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		appender: appender,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	obsChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case obs, ok := <-obsChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processObservation(ctx, obs); err != nil {
				w.logger.Error(ctx, "error appending observation", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processObservation appends a single observation. Rejections (duplicates,
// out-of-order arrivals, invalid payloads) are logged and skipped so one bad
// observation never stalls the pipeline.
func (w *InMemoryWorker) processObservation(ctx context.Context, obs Observation) error {
	err := w.appender.Append(ctx, obs)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, repository.ErrDuplicateKey),
		errors.Is(err, repository.ErrOutOfOrder),
		errors.Is(err, model.ErrValidation):
		w.logger.Warn(ctx, "observation skipped",
			logger.String("signal", obs.Signal),
			logger.Time("ts", obs.TS),
			logger.Error(err),
		)
		return nil
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "append_error")
		return fmt.Errorf("append observation for %q: %w", obs.Signal, err)
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	appender Appender

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, appender Appender) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		appender: appender,
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			appender,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop signals every worker and waits briefly for each to exit. Unlike
// Shutdown it does not close the queue, so buffered observations stay
// queued.
func (p *Pool) Stop() {
	for _, worker := range p.workers {
		close(worker.shutdown)
	}
	for _, worker := range p.workers {
		select {
		case <-worker.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue so buffered observations drain, then waits for
// all workers to finish or the timeout to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerCount(0)

	return nil
}
