package sentry

import (
	"context"
	"fmt"

	"github.com/sheldongordon4/coherence-engine/internal/adapters/ingest"
	"github.com/sheldongordon4/coherence-engine/internal/adapters/repository"
	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
)

// upstreamStore is the trace label for runs fed from the rolling store.
const upstreamStore = "store"

// SeriesSource supplies the observations evaluated in one run, grouped by
// signal, plus the upstream label recorded in the incident trace.
type SeriesSource interface {
	Series(ctx context.Context, window model.Window) (map[string][]model.Observation, string, error)
}

// providerSource feeds a run from an ingest provider, either the live
// upstream client or the mock provider.
type providerSource struct {
	provider ingest.Provider
}

// NewProviderSource adapts an ingest provider into a series source.
func NewProviderSource(p ingest.Provider) SeriesSource {
	return &providerSource{provider: p}
}

func (s *providerSource) Series(ctx context.Context, window model.Window) (map[string][]model.Observation, string, error) {
	observations, _, err := s.provider.Fetch(ctx, window.Start, window.End)
	if err != nil {
		return nil, "", fmt.Errorf("fetch from %s: %w", s.provider.Name(), err)
	}

	grouped := make(map[string][]model.Observation)
	for _, obs := range observations {
		grouped[obs.Signal] = append(grouped[obs.Signal], obs)
	}
	return grouped, s.provider.Name(), nil
}

// storeSource feeds a run from an already-populated rolling store. Every
// tracked signal is evaluated, including those with empty windows.
type storeSource struct {
	store repository.Store
}

// NewStoreSource adapts a rolling store into a series source.
func NewStoreSource(st repository.Store) SeriesSource {
	return &storeSource{store: st}
}

func (s *storeSource) Series(ctx context.Context, window model.Window) (map[string][]model.Observation, string, error) {
	grouped := make(map[string][]model.Observation)
	for _, signal := range s.store.Signals(ctx) {
		observations, err := s.store.Query(ctx, signal, window)
		if err != nil {
			return nil, "", fmt.Errorf("query signal %q: %w", signal, err)
		}
		grouped[signal] = observations
	}
	return grouped, upstreamStore, nil
}
