package model

import "errors"

var (
	// ErrValidation reports a malformed observation or a non-finite value.
	// It is surfaced to callers, never coerced into a result.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidWindow reports a window span that could not be parsed.
	ErrInvalidWindow = errors.New("invalid window span")
)
