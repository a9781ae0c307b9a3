// Package history persists computed metric rows to a CSV file so recent
// results survive restarts and can be served back over the API.
package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

var header = []string{"ts_utc", "window_sec", "n", "mean", "stdev", "drift_risk", "source", "request_id"}

// Row is one persisted computation result.
type Row struct {
	TS        time.Time `json:"ts_utc"`
	WindowSec int64     `json:"window_sec"`
	N         int       `json:"n"`
	Mean      float64   `json:"mean"`
	Stdev     float64   `json:"stdev"`
	DriftRisk string    `json:"drift_risk"`
	Source    string    `json:"source"`
	RequestID string    `json:"request_id"`
}

// CSVStore appends rows to a single CSV file guarded by a mutex. The file is
// created with a header row on first use.
type CSVStore struct {
	mu   sync.Mutex
	path string
}

// NewCSVStore prepares a store writing to path, creating parent directories
// as needed.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty: %w", ErrInvalidPath)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	return &CSVStore{path: path}, nil
}

// Path returns the file the store writes to.
func (s *CSVStore) Path() string {
	return s.path
}

// Append writes one row, adding the header first when the file is new.
func (s *CSVStore) Append(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		metrics.RecordHistoryError()
		return fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		metrics.RecordHistoryError()
		return fmt.Errorf("stat history file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			metrics.RecordHistoryError()
			return fmt.Errorf("writing history header: %w", err)
		}
	}

	record := []string{
		row.TS.UTC().Format(time.RFC3339),
		strconv.FormatInt(row.WindowSec, 10),
		strconv.Itoa(row.N),
		strconv.FormatFloat(row.Mean, 'f', -1, 64),
		strconv.FormatFloat(row.Stdev, 'f', -1, 64),
		row.DriftRisk,
		row.Source,
		row.RequestID,
	}
	if err := w.Write(record); err != nil {
		metrics.RecordHistoryError()
		return fmt.Errorf("writing history row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		metrics.RecordHistoryError()
		return fmt.Errorf("flushing history row: %w", err)
	}

	metrics.RecordHistoryRowWritten()

	return nil
}

// Latest returns up to limit of the most recent rows in chronological
// order. A missing file yields an empty result.
func (s *CSVStore) Latest(_ context.Context, limit int) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading history file: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	records = records[1:] // drop header
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("history row %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedRow, rec[0])
	}
	windowSec, err := strconv.ParseInt(rec[1], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad window_sec %q", ErrMalformedRow, rec[1])
	}
	n, err := strconv.Atoi(rec[2])
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad n %q", ErrMalformedRow, rec[2])
	}
	mean, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad mean %q", ErrMalformedRow, rec[3])
	}
	stdev, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return Row{}, fmt.Errorf("%w: bad stdev %q", ErrMalformedRow, rec[4])
	}

	return Row{
		TS:        ts.UTC(),
		WindowSec: windowSec,
		N:         n,
		Mean:      mean,
		Stdev:     stdev,
		DriftRisk: rec[5],
		Source:    rec[6],
		RequestID: rec[7],
	}, nil
}
