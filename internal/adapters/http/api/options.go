package api

// Defaults applied when no option overrides them.
const (
	defaultVersion      = "0.1.0"
	defaultWindowSpan   = "5m"
	defaultSignalID     = "coherence"
	defaultHistoryLimit = 50

	corsMaxAgeSeconds = 3600
)

// settings collects the tunable knobs handlers are constructed with.
type settings struct {
	version       string
	defaultWindow string
	defaultSignal string
	historyLimit  int
	includeLegacy bool
	corsOrigins   []string
}

// Option applies a configuration option to the server.
type Option func(*settings)

// WithVersion sets the version string reported by /health.
func WithVersion(version string) Option {
	return func(s *settings) {
		if version != "" {
			s.version = version
		}
	}
}

// WithDefaultWindow sets the window span used when a metrics request
// names none.
func WithDefaultWindow(span string) Option {
	return func(s *settings) {
		if span != "" {
			s.defaultWindow = span
		}
	}
}

// WithDefaultSignal sets the signal id used when a metrics request
// names none.
func WithDefaultSignal(signal string) Option {
	return func(s *settings) {
		if signal != "" {
			s.defaultSignal = signal
		}
	}
}

// WithHistoryLimit caps how many rows one history request may return.
func WithHistoryLimit(limit int) Option {
	return func(s *settings) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithIncludeLegacy controls whether metric responses carry the legacy
// mirror fields when the request does not say.
func WithIncludeLegacy(include bool) Option {
	return func(s *settings) {
		s.includeLegacy = include
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(s *settings) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}
