package history

import "errors"

var (
	// ErrInvalidPath is returned when the store is created without a target
	// file path.
	ErrInvalidPath = errors.New("invalid history path")

	// ErrMalformedRow is returned when a persisted row cannot be parsed
	// back.
	ErrMalformedRow = errors.New("malformed history row")
)
