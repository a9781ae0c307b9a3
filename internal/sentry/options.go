package sentry

import (
	"time"

	"github.com/sheldongordon4/coherence-engine/pkg/logger"
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithClock overrides the runner's time source. Tests pin it so window
// bounds and incident timestamps are reproducible.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithEmitter replaces the emitter built from the output directory.
func WithEmitter(e *Emitter) Option {
	return func(r *Runner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithLogger sets the logger used by the runner.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}
