package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a half-open interval [End-duration, End) over which an
// aggregate is computed. Label keeps the named span ("30s", "5m", "24h")
// the window was built from.
type Window struct {
	Start time.Time
	End   time.Time
	Label string
}

// ParseSpan converts a named span into a duration. Accepted forms are a
// number with an s, m, or h suffix ("30s", "5m", "1h", "24h") or bare
// digits meaning seconds ("86400").
func ParseSpan(span string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(span))
	if s == "" {
		return 0, fmt.Errorf("empty span: %w", ErrInvalidWindow)
	}

	unit := time.Second
	switch {
	case strings.HasSuffix(s, "h"):
		unit = time.Hour
		s = strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "m"):
		unit = time.Minute
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("span %q: %w", span, ErrInvalidWindow)
	}
	return time.Duration(n) * unit, nil
}

// SpanLabel pretty-prints a duration as the shortest named span,
// e.g. 86400s -> "24h", 300s -> "5m", 45s -> "45s".
func SpanLabel(d time.Duration) string {
	sec := int64(d / time.Second)
	switch {
	case sec > 0 && sec%3600 == 0:
		return fmt.Sprintf("%dh", sec/3600)
	case sec > 0 && sec%60 == 0:
		return fmt.Sprintf("%dm", sec/60)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

// NewWindow builds the half-open window [end-span, end). A zero end pins
// the window to the current time; tests pass an explicit end for
// reproducibility.
func NewWindow(span string, end time.Time) (Window, error) {
	d, err := ParseSpan(span)
	if err != nil {
		return Window{}, err
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	end = end.UTC()
	return Window{
		Start: end.Add(-d),
		End:   end,
		Label: SpanLabel(d),
	}, nil
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Seconds returns the window length in whole seconds.
func (w Window) Seconds() int64 {
	return int64(w.Duration() / time.Second)
}

// Contains reports whether ts falls inside [Start, End).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}
