// Package ingest pulls signal observations from upstream sources. The
// darshan client pages through the summary endpoint with rate limiting and
// bounded retries; the mock provider serves fixture files or a synthetic
// series for offline use.
package ingest

import (
	"context"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
)

// FetchMeta carries debug information about one fetch cycle.
type FetchMeta struct {
	LatencyMS    int64 `json:"latency_ms"`
	PagesFetched int   `json:"pages_fetched"`
	Retries      int   `json:"retries"`
}

// Provider fetches observations inside the half-open interval
// [since, until).
type Provider interface {
	Fetch(ctx context.Context, since, until time.Time) ([]model.Observation, FetchMeta, error)

	// Name identifies the provider in history rows and incident traces.
	Name() string
}
