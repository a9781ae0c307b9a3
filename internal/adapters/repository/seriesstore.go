package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

const (
	defaultTolerance       = 5 * time.Minute
	defaultMaxWindow       = 24 * time.Hour
	defaultRetentionMargin = time.Hour
)

// series holds one signal's observations ordered by timestamp ascending.
// latest tracks the newest timestamp ever appended and survives pruning, so
// the out-of-order guard keeps working after old points are dropped.
type series struct {
	points []model.Observation
	latest time.Time
}

// SeriesStore is an in-memory Store keyed by signal identifier. All methods
// are safe for concurrent use.
type SeriesStore struct {
	mu     sync.RWMutex
	series map[string]*series
	count  int

	overwrite       bool
	tolerance       time.Duration
	maxWindow       time.Duration
	retentionMargin time.Duration
	now             func() time.Time
}

// NewSeriesStore creates an empty store with the given options applied.
func NewSeriesStore(opts ...Option) *SeriesStore {
	s := &SeriesStore{
		series:          make(map[string]*series),
		tolerance:       defaultTolerance,
		maxWindow:       defaultMaxWindow,
		retentionMargin: defaultRetentionMargin,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Append implements Store.
func (s *SeriesStore) Append(_ context.Context, obs model.Observation) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := obs.Validate(); err != nil {
		metrics.RecordObservationRejected("validation")
		return err
	}

	obs.TS = obs.TS.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	ser, ok := s.series[obs.Signal]
	if !ok {
		ser = &series{}
		s.series[obs.Signal] = ser
	}

	if !ser.latest.IsZero() && obs.TS.Before(ser.latest.Add(-s.tolerance)) {
		metrics.RecordObservationRejected("out_of_order")
		return fmt.Errorf("append %q at %s behind latest %s: %w",
			obs.Signal, obs.TS.Format(time.RFC3339Nano), ser.latest.Format(time.RFC3339Nano), ErrOutOfOrder)
	}

	idx := sort.Search(len(ser.points), func(i int) bool {
		return !ser.points[i].TS.Before(obs.TS)
	})

	if idx < len(ser.points) && ser.points[idx].TS.Equal(obs.TS) {
		if !s.overwrite {
			metrics.RecordObservationRejected("duplicate")
			return fmt.Errorf("append %q at %s: %w",
				obs.Signal, obs.TS.Format(time.RFC3339Nano), ErrDuplicateKey)
		}
		ser.points[idx].Value = obs.Value
		metrics.RecordObservationAppended()
		return nil
	}

	ser.points = append(ser.points, model.Observation{})
	copy(ser.points[idx+1:], ser.points[idx:])
	ser.points[idx] = obs
	s.count++

	if obs.TS.After(ser.latest) {
		ser.latest = obs.TS
	}

	metrics.RecordObservationAppended()
	metrics.UpdateStoreObservations(s.count)
	metrics.UpdateStoreSignals(len(s.series))

	return nil
}

// Query implements Store. The returned slice is a copy; callers may mutate
// it freely.
func (s *SeriesStore) Query(_ context.Context, signal string, window model.Window) ([]model.Observation, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ser, ok := s.series[signal]
	if !ok {
		return nil, nil
	}

	lo := sort.Search(len(ser.points), func(i int) bool {
		return !ser.points[i].TS.Before(window.Start)
	})
	hi := sort.Search(len(ser.points), func(i int) bool {
		return !ser.points[i].TS.Before(window.End)
	})
	if lo >= hi {
		return nil, nil
	}

	out := make([]model.Observation, hi-lo)
	copy(out, ser.points[lo:hi])

	return out, nil
}

// Prune implements Store. The cutoff is clamped so observations still
// reachable by the largest configured window ending now, plus the retention
// margin, are never dropped.
func (s *SeriesStore) Prune(_ context.Context, olderThan time.Time) int {
	floor := s.now().UTC().Add(-(s.maxWindow + s.retentionMargin))
	cutoff := olderThan.UTC()
	if cutoff.After(floor) {
		cutoff = floor
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, ser := range s.series {
		idx := sort.Search(len(ser.points), func(i int) bool {
			return !ser.points[i].TS.Before(cutoff)
		})
		if idx == 0 {
			continue
		}
		kept := make([]model.Observation, len(ser.points)-idx)
		copy(kept, ser.points[idx:])
		ser.points = kept
		removed += idx
	}

	if removed > 0 {
		s.count -= removed
		metrics.RecordStorePruneRemoved(removed)
		metrics.UpdateStoreObservations(s.count)
	}

	return removed
}

// Signals implements Store.
func (s *SeriesStore) Signals(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for signal := range s.series {
		out = append(out, signal)
	}
	sort.Strings(out)

	return out
}

// Len implements Store.
func (s *SeriesStore) Len(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.count
}
