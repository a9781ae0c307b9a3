package repository

import "time"

// Option configures a SeriesStore.
type Option func(*SeriesStore)

// WithOverwriteDuplicates makes Append replace the stored value when an
// observation arrives for an existing signal/timestamp pair instead of
// returning ErrDuplicateKey. The default is to reject duplicates.
func WithOverwriteDuplicates(overwrite bool) Option {
	return func(s *SeriesStore) {
		s.overwrite = overwrite
	}
}

// WithOutOfOrderTolerance sets how far behind a signal's latest timestamp an
// appended observation may fall before Append rejects it with ErrOutOfOrder.
func WithOutOfOrderTolerance(d time.Duration) Option {
	return func(s *SeriesStore) {
		if d >= 0 {
			s.tolerance = d
		}
	}
}

// WithMaxWindow sets the largest window duration queries are expected to
// use. Prune keeps every observation that such a window ending now could
// still reach.
func WithMaxWindow(d time.Duration) Option {
	return func(s *SeriesStore) {
		if d > 0 {
			s.maxWindow = d
		}
	}
}

// WithRetentionMargin sets the extra slack kept beyond the maximum window
// when pruning.
func WithRetentionMargin(d time.Duration) Option {
	return func(s *SeriesStore) {
		if d >= 0 {
			s.retentionMargin = d
		}
	}
}

// WithClock overrides the store's time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *SeriesStore) {
		if now != nil {
			s.now = now
		}
	}
}
