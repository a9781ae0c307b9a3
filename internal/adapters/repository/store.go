// Package repository provides the rolling observation store backing the
// coherence engine. Observations are held in memory, ordered by timestamp
// per signal, and trimmed by explicit Prune calls. The store runs no
// background goroutines; retention scheduling belongs to the caller.
package repository

import (
	"context"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
)

// Store is the persistence interface for rolling signal observations.
type Store interface {
	// Append adds a single observation. It returns ErrDuplicateKey when an
	// observation for the same signal and timestamp already exists (unless
	// the store overwrites duplicates), and ErrOutOfOrder when the
	// observation falls behind the signal's latest timestamp by more than
	// the configured tolerance.
	Append(ctx context.Context, obs model.Observation) error

	// Query returns the observations for signal inside the half-open
	// interval [window.Start, window.End), ordered by timestamp ascending.
	// An unknown signal or an empty interval yields an empty slice, not an
	// error.
	Query(ctx context.Context, signal string, window model.Window) ([]model.Observation, error)

	// Prune removes observations older than the cutoff and reports how many
	// were dropped. The effective cutoff never reaches past what the largest
	// configured window plus the retention margin still needs.
	Prune(ctx context.Context, olderThan time.Time) int

	// Signals lists the signal identifiers currently known to the store,
	// sorted ascending.
	Signals(ctx context.Context) []string

	// Len reports the total number of stored observations across signals.
	Len(ctx context.Context) int
}
