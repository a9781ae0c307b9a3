// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"time"
)

// Observation is one sample of a named signal. Immutable once stored;
// uniquely identified by (Signal, TS).
type Observation struct {
	Signal string    // signal identifier, non-empty
	TS     time.Time // sample instant, UTC
	Value  float64   // finite sample value
}

// Validate checks the invariants an observation must satisfy before it
// may enter a store or a computation.
func (o Observation) Validate() error {
	if o.Signal == "" {
		return fmt.Errorf("empty signal id: %w", ErrValidation)
	}
	if o.TS.IsZero() {
		return fmt.Errorf("zero timestamp for signal %q: %w", o.Signal, ErrValidation)
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return fmt.Errorf("non-finite value for signal %q: %w", o.Signal, ErrValidation)
	}
	return nil
}
