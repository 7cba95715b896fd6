package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
	apperrors "github.com/OR-Dept-Environmental-Quality/soar/internal/errors"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
)

const userAgent = "soar-pipeline/1.0"

// Options tunes one API family's client. Zero values are filled with the
// documented defaults by New.
type Options struct {
	API           string // metric and breaker label: aqs, envista
	Timeout       time.Duration
	Retries       int
	BackoffFactor float64
	MaxWait       time.Duration

	// Basic auth, used by Envista. Empty Username disables it.
	Username string
	Password string
}

// Client is the shared fetch layer: paced, breaker-guarded, retrying.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *RateLimiter
	breaker *Breaker
	log     *zap.Logger

	sleep func(time.Duration)
	randf func() float64
}

// New builds a client around a pooled transport. limiter and breaker are
// required; they are shared with other clients of the same API family.
func New(opts Options, limiter *RateLimiter, breaker *Breaker, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 6
	}
	if opts.BackoffFactor <= 0 {
		opts.BackoffFactor = 1.5
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		opts: opts,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		breaker: breaker,
		log:     log,
		sleep:   time.Sleep,
		randf:   rand.Float64,
	}
}

// Breaker exposes the client's circuit breaker so run setup can check it
// before scheduling work.
func (c *Client) Breaker() *Breaker { return c.breaker }

// FetchJSON fetches url and decodes the response body. The retry loop
// classifies every outcome: 429 backs off (honoring Retry-After) without
// touching the breaker, 5xx counts a breaker failure and backs off, other
// 4xx fail immediately, transport errors and malformed 2xx bodies back off.
// Every attempt records its outcome, so exhaustion always wraps the last
// attempt's error.
func (c *Client) FetchJSON(ctx context.Context, url string) (any, error) {
	if c.breaker.IsOpen() {
		opened, _ := c.breaker.OpenedAt()
		return nil, &apperrors.CircuitOpenError{
			API:      c.opts.API,
			OpenedAt: opened,
			Cooldown: c.breaker.Cooldown(),
		}
	}

	var last error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		result, outcome := c.attempt(ctx, url)
		switch outcome.kind {
		case outcomeSuccess:
			metrics.APICallsTotal.WithLabelValues(c.opts.API, "success").Inc()
			return result, nil
		case outcomeFatal:
			metrics.APICallsTotal.WithLabelValues(c.opts.API, "failure").Inc()
			return nil, outcome.err
		case outcomeRetryable:
			last = outcome.err
			if attempt < c.opts.Retries {
				wait := c.backoff(attempt, outcome.retryAfter, outcome.hasRetryAfter)
				c.log.Debug("retrying request",
					zap.String("api", c.opts.API),
					zap.String("url", url),
					zap.Int("attempt", attempt+1),
					zap.Duration("wait", wait),
					zap.Error(outcome.err))
				c.sleep(wait)
			}
		}
	}

	metrics.APICallsTotal.WithLabelValues(c.opts.API, "failure").Inc()
	return nil, &apperrors.RetriesExhaustedError{
		URL:      url,
		Attempts: c.opts.Retries + 1,
		Last:     last,
	}
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomeFatal
)

// attemptOutcome forces every attempt to classify itself; there is no
// "nothing recorded" path out of the retry loop.
type attemptOutcome struct {
	kind          outcomeKind
	err           error
	retryAfter    time.Duration
	hasRetryAfter bool
}

func (c *Client) attempt(ctx context.Context, url string) (any, attemptOutcome) {
	c.limiter.Throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, attemptOutcome{kind: outcomeFatal, err: fmt.Errorf("build request for %s: %w", url, err)}
	}
	req.Header.Set("User-Agent", userAgent)
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RequestDurationSeconds.WithLabelValues(c.opts.API).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HTTPErrorsTotal.WithLabelValues(c.opts.API, "network").Inc()
		return nil, attemptOutcome{kind: outcomeRetryable, err: &apperrors.TransportError{URL: url, Err: err}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.HTTPErrorsTotal.WithLabelValues(c.opts.API, "network").Inc()
		return nil, attemptOutcome{kind: outcomeRetryable, err: &apperrors.TransportError{URL: url, Err: err}}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.HTTPErrorsTotal.WithLabelValues(c.opts.API, "429").Inc()
		after, ok := retryAfter(resp, time.Now())
		return nil, attemptOutcome{
			kind:          outcomeRetryable,
			err:           &apperrors.RateLimitedError{URL: url, RetryAfter: after},
			retryAfter:    after,
			hasRetryAfter: ok,
		}
	case resp.StatusCode >= 500:
		metrics.HTTPErrorsTotal.WithLabelValues(c.opts.API, "5xx").Inc()
		if err := c.breaker.RecordFailure(); err != nil {
			c.log.Warn("persisting breaker failure", zap.Error(err))
		}
		return nil, attemptOutcome{kind: outcomeRetryable, err: &apperrors.ServerError{StatusCode: resp.StatusCode, URL: url}}
	case resp.StatusCode >= 400:
		metrics.HTTPErrorsTotal.WithLabelValues(c.opts.API, "4xx").Inc()
		return nil, attemptOutcome{kind: outcomeFatal, err: &apperrors.ClientError{StatusCode: resp.StatusCode, URL: url}}
	}

	if err := c.breaker.RecordSuccess(); err != nil {
		c.log.Warn("persisting breaker reset", zap.Error(err))
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.HTTPErrorsTotal.WithLabelValues(c.opts.API, "malformed").Inc()
		return nil, attemptOutcome{kind: outcomeRetryable, err: &apperrors.MalformedResponseError{URL: url, Err: err}}
	}
	return parsed, attemptOutcome{kind: outcomeSuccess}
}

// backoff computes the wait before the next attempt. A server-provided
// Retry-After wins, capped at the configured maximum; otherwise exponential
// backoff with 10% jitter.
func (c *Client) backoff(attempt int, after time.Duration, hasAfter bool) time.Duration {
	if hasAfter {
		if after > c.opts.MaxWait {
			return c.opts.MaxWait
		}
		if after < 0 {
			return 0
		}
		return after
	}
	base := c.opts.BackoffFactor * math.Pow(2, float64(attempt))
	jitter := base * 0.1 * (2*c.randf() - 1)
	wait := time.Duration((base + jitter) * float64(time.Second))
	if wait > c.opts.MaxWait {
		wait = c.opts.MaxWait
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// retryAfter parses a Retry-After header as either delta seconds or an HTTP
// date. ok is false when the header is absent or unparseable.
func retryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(header); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// FetchRows fetches url and extracts the tabular payload from the known
// envelope shapes: a top-level [header, data] array, or an object keyed by
// Data, data, Results, results or rows. Unrecognized envelopes yield an
// empty frame rather than an error.
func (c *Client) FetchRows(ctx context.Context, url string) (*core.Frame, error) {
	js, err := c.FetchJSON(ctx, url)
	if err != nil {
		return nil, err
	}
	return ExtractRows(js), nil
}

// ExtractRows pulls the record list out of a decoded API envelope.
func ExtractRows(js any) *core.Frame {
	var data []any
	switch v := js.(type) {
	case []any:
		if len(v) > 1 {
			if rows, ok := v[1].([]any); ok {
				data = rows
			}
		}
		if data == nil && len(v) > 0 {
			if rows, ok := v[0].([]any); ok {
				data = rows
			}
		}
	case map[string]any:
		for _, key := range []string{"Data", "data", "Results", "results", "rows"} {
			if rows, ok := v[key].([]any); ok {
				data = rows
				break
			}
		}
	}
	if len(data) == 0 {
		return &core.Frame{}
	}
	records := make([]map[string]any, 0, len(data))
	for _, item := range data {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return core.FromRecords(records)
}
