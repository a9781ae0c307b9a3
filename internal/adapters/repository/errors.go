package repository

import "errors"

var (
	// ErrDuplicateKey is returned when an observation arrives for a
	// signal/timestamp pair that is already stored.
	ErrDuplicateKey = errors.New("duplicate observation for signal and timestamp")

	// ErrOutOfOrder is returned when an observation's timestamp falls behind
	// the signal's latest seen timestamp by more than the configured
	// tolerance.
	ErrOutOfOrder = errors.New("observation timestamp outside out-of-order tolerance")
)
