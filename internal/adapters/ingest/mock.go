package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

// Synthetic series shape used when no fixture file is configured.
const (
	syntheticPoints    = 48
	syntheticBase      = 0.85
	syntheticAmplitude = 0.04
	syntheticSpan      = time.Hour
)

// MockProvider serves observations from a JSON fixture file, or a
// deterministic synthetic series when no file is configured. Fixtures may
// hold a page envelope, a bare array of rows, or a single row.
type MockProvider struct {
	path   string
	signal string
	now    func() time.Time
}

// MockOption applies a configuration option to the MockProvider.
type MockOption func(*MockProvider)

// WithMockSignal sets the signal identifier assigned to rows that carry
// none of their own, and to the synthetic series.
func WithMockSignal(signal string) MockOption {
	return func(p *MockProvider) {
		if signal != "" {
			p.signal = signal
		}
	}
}

// WithMockClock overrides the time source for the synthetic series.
func WithMockClock(now func() time.Time) MockOption {
	return func(p *MockProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewMockProvider creates a provider reading from path. An empty path
// switches to the synthetic series.
func NewMockProvider(path string, opts ...MockOption) *MockProvider {
	p := &MockProvider{
		path:   path,
		signal: defaultSignal,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name implements Provider.
func (p *MockProvider) Name() string {
	return "mock"
}

// Fetch implements Provider.
func (p *MockProvider) Fetch(_ context.Context, since, until time.Time) ([]model.Observation, FetchMeta, error) {
	start := time.Now()

	var out []model.Observation
	var err error
	if p.path == "" {
		out = p.synthetic(since, until)
	} else {
		out, err = p.fromFixture(since, until)
		if err != nil {
			metrics.RecordIngestError()
			return nil, FetchMeta{LatencyMS: time.Since(start).Milliseconds()}, err
		}
	}

	meta := FetchMeta{
		LatencyMS:    time.Since(start).Milliseconds(),
		PagesFetched: 1,
	}
	metrics.RecordIngestPage()
	metrics.RecordIngestRecords(len(out))

	return out, meta, nil
}

func (p *MockProvider) fromFixture(since, until time.Time) ([]model.Observation, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("reading mock fixture: %w", err)
	}

	records, err := decodeFixture(raw)
	if err != nil {
		return nil, err
	}

	out := make([]model.Observation, 0, len(records))
	for _, rec := range records {
		obs, ok := observationFromRecord(rec, p.signal)
		if !ok {
			continue
		}
		if !since.IsZero() && obs.TS.Before(since) {
			continue
		}
		if !until.IsZero() && !obs.TS.Before(until) {
			continue
		}
		out = append(out, obs)
	}

	return out, nil
}

func decodeFixture(raw []byte) ([]summaryRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty fixture", ErrMockPayload)
	}

	if trimmed[0] == '[' {
		var records []summaryRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMockPayload, err)
		}
		return records, nil
	}

	var env pageEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMockPayload, err)
	}
	if recs := env.records(); len(recs) > 0 {
		return recs, nil
	}

	// A single bare row.
	var rec summaryRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMockPayload, err)
	}
	if len(rec.Timestamp) == 0 {
		return nil, fmt.Errorf("%w: no rows found", ErrMockPayload)
	}

	return []summaryRecord{rec}, nil
}

// synthetic produces an evenly spaced, slowly oscillating series so demo
// runs and tests have stable data without an upstream.
func (p *MockProvider) synthetic(since, until time.Time) []model.Observation {
	if until.IsZero() {
		until = p.now().UTC()
	}
	if since.IsZero() || !since.Before(until) {
		since = until.Add(-syntheticSpan)
	}

	step := until.Sub(since) / syntheticPoints
	if step <= 0 {
		step = time.Second
	}

	out := make([]model.Observation, 0, syntheticPoints)
	for i := 0; i < syntheticPoints; i++ {
		out = append(out, model.Observation{
			Signal: p.signal,
			TS:     since.Add(time.Duration(i) * step).UTC(),
			Value:  syntheticBase + syntheticAmplitude*math.Sin(float64(i)/3),
		})
	}

	return out
}
