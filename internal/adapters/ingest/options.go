package ingest

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DarshanOption applies a configuration option to the DarshanClient.
type DarshanOption func(*DarshanClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) DarshanOption {
	return func(c *DarshanClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) DarshanOption {
	return func(c *DarshanClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithPageSize sets how many rows are requested per page.
func WithPageSize(size int) DarshanOption {
	return func(c *DarshanClient) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithMaxPages caps how many pages one fetch cycle may follow.
func WithMaxPages(pages int) DarshanOption {
	return func(c *DarshanClient) {
		if pages > 0 {
			c.maxPages = pages
		}
	}
}

// WithMaxAttempts sets how often a failing page request is tried in total.
func WithMaxAttempts(attempts int) DarshanOption {
	return func(c *DarshanClient) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithBackoff sets the exponential backoff bounds between attempts.
func WithBackoff(min, max time.Duration) DarshanOption {
	return func(c *DarshanClient) {
		if min > 0 {
			c.backoffMin = min
		}
		if max >= min && max > 0 {
			c.backoffMax = max
		}
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) DarshanOption {
	return func(c *DarshanClient) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithDefaultSignal sets the signal identifier assigned to rows that carry
// none of their own.
func WithDefaultSignal(signal string) DarshanOption {
	return func(c *DarshanClient) {
		if signal != "" {
			c.signal = signal
		}
	}
}
