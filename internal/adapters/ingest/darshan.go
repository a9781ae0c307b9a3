package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

// Default darshan client configuration constants.
const (
	defaultTimeout     = 10 * time.Second
	defaultPageSize    = 500
	defaultMaxPages    = 10 // hard cap to avoid cursor loops
	defaultMaxAttempts = 3
	defaultBackoffMin  = 500 * time.Millisecond
	defaultBackoffMax  = 3 * time.Second
	defaultRateLimit   = rate.Limit(5)
	defaultRateBurst   = 5
	defaultSignal      = "coherence"

	summaryPath = "/signals/summary"
)

// DarshanClient pages through the upstream summary endpoint.
type DarshanClient struct {
	baseURL     string
	apiKey      string
	signal      string
	pageSize    int
	maxPages    int
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDarshanClient creates a client for baseURL. The API key is optional;
// when set it is sent as a bearer token.
func NewDarshanClient(baseURL, apiKey string, opts ...DarshanOption) (*DarshanClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}

	c := &DarshanClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		signal:      defaultSignal,
		pageSize:    defaultPageSize,
		maxPages:    defaultMaxPages,
		maxAttempts: defaultMaxAttempts,
		backoffMin:  defaultBackoffMin,
		backoffMax:  defaultBackoffMax,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(defaultRateLimit, defaultRateBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Name implements Provider.
func (c *DarshanClient) Name() string {
	return "darshan"
}

// Fetch implements Provider. It follows the next-page cursor until the
// upstream stops returning one or the page cap is reached. Rows that cannot
// be parsed are skipped.
func (c *DarshanClient) Fetch(ctx context.Context, since, until time.Time) ([]model.Observation, FetchMeta, error) {
	start := time.Now()
	var meta FetchMeta
	var out []model.Observation

	query := url.Values{}
	query.Set("page_size", strconv.Itoa(c.pageSize))
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	if !until.IsZero() {
		query.Set("until", until.UTC().Format(time.RFC3339))
	}

	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		env, retries, err := c.getPage(ctx, query, cursor)
		meta.Retries += retries
		if err != nil {
			meta.LatencyMS = time.Since(start).Milliseconds()
			metrics.RecordIngestError()
			return nil, meta, err
		}

		meta.PagesFetched++
		metrics.RecordIngestPage()

		for _, rec := range env.records() {
			if obs, ok := observationFromRecord(rec, c.signal); ok {
				out = append(out, obs)
			}
		}

		cursor = env.cursor()
		if cursor == "" {
			break
		}
	}

	meta.LatencyMS = time.Since(start).Milliseconds()
	metrics.RecordIngestRecords(len(out))
	metrics.RecordIngestLatency(float64(meta.LatencyMS))

	return out, meta, nil
}

// getPage fetches one page, retrying transport failures and retryable
// status codes with exponential backoff. It reports how many retries were
// spent.
func (c *DarshanClient) getPage(ctx context.Context, query url.Values, cursor string) (pageEnvelope, int, error) {
	q := url.Values{}
	for key, vals := range query {
		q[key] = vals
	}
	if cursor != "" {
		q.Set("page", cursor)
	}
	endpoint := c.baseURL + summaryPath + "?" + q.Encode()

	retries := 0
	backoff := c.backoffMin
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			retries++
			metrics.RecordIngestRetry()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return pageEnvelope{}, retries, ctx.Err()
			}
			backoff *= 2
			if backoff > c.backoffMax {
				backoff = c.backoffMax
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return pageEnvelope{}, retries, fmt.Errorf("rate limiter: %w", err)
		}

		env, err := c.doRequest(ctx, endpoint)
		if err == nil {
			return env, retries, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	return pageEnvelope{}, retries, lastErr
}

func (c *DarshanClient) doRequest(ctx context.Context, endpoint string) (pageEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pageEnvelope{}, fmt.Errorf("building summary request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pageEnvelope{}, fmt.Errorf("calling upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return pageEnvelope{}, &statusError{status: resp.StatusCode}
	}

	var env pageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return pageEnvelope{}, fmt.Errorf("decoding summary page: %w", err)
	}

	return env, nil
}

// retryable reports whether a request is worth repeating: transport errors
// and throttling or server-side status codes are, client errors and
// malformed payloads are not.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= http.StatusInternalServerError || se.status == http.StatusTooManyRequests
	}
	var ne net.Error
	return errors.As(err, &ne)
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned error status: %d", e.status)
}

func (e *statusError) Is(target error) bool {
	return target == ErrUpstreamStatus
}

// pageEnvelope tolerates both payload spellings the upstream emits.
type pageEnvelope struct {
	Items    []summaryRecord `json:"items"`
	Data     []summaryRecord `json:"data"`
	NextPage string          `json:"next_page"`
	Next     string          `json:"next"`
}

func (p *pageEnvelope) records() []summaryRecord {
	if len(p.Items) > 0 {
		return p.Items
	}
	return p.Data
}

func (p *pageEnvelope) cursor() string {
	if p.NextPage != "" {
		return p.NextPage
	}
	return p.Next
}

// summaryRecord is one upstream row. The timestamp may be an ISO-8601
// string or epoch seconds; the score field comes in two spellings and
// defaults to zero when absent.
type summaryRecord struct {
	Signal     string          `json:"signal"`
	SignalID   string          `json:"signal_id"`
	Timestamp  json.RawMessage `json:"timestamp"`
	Score      *float64        `json:"coherenceScore"`
	ScoreSnake *float64        `json:"coherence_score"`
	EventCount int             `json:"eventCount"`
}

func observationFromRecord(rec summaryRecord, fallbackSignal string) (model.Observation, bool) {
	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return model.Observation{}, false
	}

	value := 0.0
	switch {
	case rec.Score != nil:
		value = *rec.Score
	case rec.ScoreSnake != nil:
		value = *rec.ScoreSnake
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return model.Observation{}, false
	}

	signal := rec.Signal
	if signal == "" {
		signal = rec.SignalID
	}
	if signal == "" {
		signal = fallbackSignal
	}

	return model.Observation{Signal: signal, TS: ts, Value: value}, true
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		secs := int64(epoch)
		nsec := int64((epoch - float64(secs)) * float64(time.Second))
		return time.Unix(secs, nsec).UTC(), nil
	}

	var iso string
	if err := json.Unmarshal(raw, &iso); err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp %s", raw)
	}
	if ts, err := time.Parse(time.RFC3339, iso); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02T15:04:05", iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp %q", iso)
	}

	return ts.UTC(), nil
}
