package sentry

import "errors"

// Sentinel errors returned by sentry runs.
var (
	// ErrInvalidConfig reports unusable run settings.
	ErrInvalidConfig = errors.New("invalid sentry run configuration")

	// ErrEvaluation reports a failed evaluation pass. Runs are
	// all-or-nothing: a failed run writes no artifact.
	ErrEvaluation = errors.New("sentry evaluation failed")

	// ErrArtifactExists reports a write-once collision on an artifact path.
	ErrArtifactExists = errors.New("incident artifact already exists")
)
