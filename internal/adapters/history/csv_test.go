package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testRow(ts time.Time, risk string) Row {
	return Row{
		TS:        ts,
		WindowSec: 3600,
		N:         12,
		Mean:      0.8425,
		Stdev:     0.0311,
		DriftRisk: risk,
		Source:    "darshan",
		RequestID: "7f3b2c1a",
	}
}

func TestCSVStore_AppendAndLatest(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, risk := range []string{"low", "medium", "high"} {
		if err := store.Append(ctx, testRow(base.Add(time.Duration(i)*time.Minute), risk)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	rows, err := store.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	first := rows[0]
	if !first.TS.Equal(base) {
		t.Errorf("expected ts %s, got %s", base, first.TS)
	}
	if first.WindowSec != 3600 || first.N != 12 {
		t.Errorf("unexpected window/n: %d/%d", first.WindowSec, first.N)
	}
	if first.Mean != 0.8425 || first.Stdev != 0.0311 {
		t.Errorf("unexpected mean/stdev: %v/%v", first.Mean, first.Stdev)
	}
	if first.DriftRisk != "low" || first.Source != "darshan" || first.RequestID != "7f3b2c1a" {
		t.Errorf("unexpected row fields: %+v", first)
	}
	if rows[2].DriftRisk != "high" {
		t.Errorf("expected chronological order, got %+v", rows)
	}
}

func TestCSVStore_HeaderWrittenOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if err := store.Append(ctx, testRow(base.Add(time.Duration(i)*time.Minute), "low")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "ts_utc,window_sec,n,mean,stdev,drift_risk,source,request_id" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if strings.Count(string(raw), "ts_utc") != 1 {
		t.Errorf("header repeated:\n%s", raw)
	}
}

func TestCSVStore_LatestHonorsLimit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		row := testRow(base.Add(time.Duration(i)*time.Minute), "low")
		row.N = i
		if err := store.Append(ctx, row); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	rows, err := store.Latest(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].N != 3 || rows[1].N != 4 {
		t.Errorf("expected the most recent rows, got %+v", rows)
	}
}

func TestCSVStore_LatestMissingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := store.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("expected missing file to yield empty result, got %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestCSVStore_CreatesParentDirectories(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "deeper", "history.csv")

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Append(ctx, testRow(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), "low")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected history file to exist: %v", err)
	}
}

func TestCSVStore_EmptyPathRejected(t *testing.T) {
	if _, err := NewCSVStore(""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
}

func TestCSVStore_MalformedRow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")

	content := "ts_utc,window_sec,n,mean,stdev,drift_risk,source,request_id\n" +
		"not-a-timestamp,3600,12,0.8,0.03,low,darshan,abc123\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store, err := NewCSVStore(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Latest(ctx, 10); !errors.Is(err, ErrMalformedRow) {
		t.Errorf("expected ErrMalformedRow, got %v", err)
	}
}
