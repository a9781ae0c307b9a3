package ingest

import "errors"

var (
	// ErrNoBaseURL is returned when the darshan client is created without an
	// upstream URL.
	ErrNoBaseURL = errors.New("upstream base URL is empty")

	// ErrUpstreamStatus is returned when the upstream answers with a
	// non-success status code.
	ErrUpstreamStatus = errors.New("upstream returned error status")

	// ErrMockPayload is returned when a mock fixture cannot be parsed.
	ErrMockPayload = errors.New("invalid mock payload")
)
