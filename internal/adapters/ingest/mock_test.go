package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestMockProvider_FixtureEnvelope(t *testing.T) {
	path := writeFixture(t, `{
		"data": [
			{"timestamp": "2024-03-01T11:10:00Z", "coherenceScore": 0.82},
			{"timestamp": "2024-03-01T11:20:00Z", "coherenceScore": 0.86, "signal_id": "session_beta"}
		]
	}`)

	provider := NewMockProvider(path, WithMockSignal("session_alpha"))
	obs, meta, err := provider.Fetch(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].Signal != "session_alpha" || obs[1].Signal != "session_beta" {
		t.Errorf("unexpected signals: %q %q", obs[0].Signal, obs[1].Signal)
	}
	if meta.PagesFetched != 1 || meta.Retries != 0 {
		t.Errorf("unexpected meta: %+v", meta)
	}
	if provider.Name() != "mock" {
		t.Errorf("unexpected provider name %q", provider.Name())
	}
}

func TestMockProvider_FixtureArrayWindowFilter(t *testing.T) {
	path := writeFixture(t, `[
		{"timestamp": "2024-03-01T10:59:59Z", "coherenceScore": 0.70},
		{"timestamp": "2024-03-01T11:00:00Z", "coherenceScore": 0.80},
		{"timestamp": 1709291400, "coherenceScore": 0.84},
		{"timestamp": "2024-03-01T12:00:00Z", "coherenceScore": 0.90}
	]`)

	since := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	provider := NewMockProvider(path)
	obs, _, err := provider.Fetch(context.Background(), since, until)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Half-open interval: 11:00:00 in, 12:00:00 out.
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations inside the window, got %d", len(obs))
	}
	if obs[0].Value != 0.80 || obs[1].Value != 0.84 {
		t.Errorf("unexpected values: %+v", obs)
	}
	if !obs[1].TS.Equal(time.Date(2024, 3, 1, 11, 10, 0, 0, time.UTC)) {
		t.Errorf("epoch timestamp parsed wrong: %s", obs[1].TS)
	}
}

func TestMockProvider_FixtureSingleRow(t *testing.T) {
	path := writeFixture(t, `{"timestamp": "2024-03-01T11:10:00Z", "coherence_score": 0.77}`)

	provider := NewMockProvider(path)
	obs, _, err := provider.Fetch(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != 1 || obs[0].Value != 0.77 {
		t.Errorf("unexpected observations: %+v", obs)
	}
}

func TestMockProvider_Synthetic(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := NewMockProvider("", WithMockSignal("demo"), WithMockClock(func() time.Time { return now }))

	obs, _, err := provider.Fetch(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obs) != syntheticPoints {
		t.Fatalf("expected %d observations, got %d", syntheticPoints, len(obs))
	}

	since := now.Add(-syntheticSpan)
	for i, o := range obs {
		if o.Signal != "demo" {
			t.Fatalf("observation %d has signal %q", i, o.Signal)
		}
		if o.TS.Before(since) || !o.TS.Before(now) {
			t.Errorf("observation %d outside window: %s", i, o.TS)
		}
		if o.Value < syntheticBase-syntheticAmplitude || o.Value > syntheticBase+syntheticAmplitude {
			t.Errorf("observation %d outside amplitude: %v", i, o.Value)
		}
	}

	// The series is deterministic for a fixed clock.
	again, _, err := provider.Fetch(context.Background(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range obs {
		if !obs[i].TS.Equal(again[i].TS) || obs[i].Value != again[i].Value {
			t.Fatalf("synthetic series not deterministic at %d", i)
		}
	}
}

func TestMockProvider_BadFixture(t *testing.T) {
	path := writeFixture(t, `{"items": "not-an-array"`)

	provider := NewMockProvider(path)
	if _, _, err := provider.Fetch(context.Background(), time.Time{}, time.Time{}); !errors.Is(err, ErrMockPayload) {
		t.Errorf("expected ErrMockPayload, got %v", err)
	}
}

func TestMockProvider_MissingFixture(t *testing.T) {
	provider := NewMockProvider(filepath.Join(t.TempDir(), "nope.json"))
	if _, _, err := provider.Fetch(context.Background(), time.Time{}, time.Time{}); err == nil {
		t.Error("expected error for missing fixture")
	}
}
