// Package errors defines the error taxonomy shared by the AQS and Envista
// client layers and the extraction engine. Callers branch on these types
// with errors.As/errors.Is rather than inspecting status codes inline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError is returned before any network call when the persisted
// circuit breaker for an API family is open. Callers abort or skip, never
// retry locally.
type CircuitOpenError struct {
	API      string
	OpenedAt time.Time
	Cooldown time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s circuit is open; skipping external requests (opened %s, cooldown %s)",
		e.API, e.OpenedAt.Format(time.RFC3339), e.Cooldown)
}

// ClientError covers permanent HTTP 4xx responses other than 429. Never
// retried and never counted by the circuit breaker.
type ClientError struct {
	StatusCode int
	URL        string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error %d fetching %s", e.StatusCode, e.URL)
}

// RateLimitedError marks an HTTP 429 response. Transient; retried with
// server-directed or exponential backoff without touching the breaker.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration // zero when the server sent no hint
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (429) fetching %s, retry after %s", e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (429) fetching %s", e.URL)
}

// ServerError covers HTTP 5xx responses. Transient; retried with backoff and
// counted toward the circuit breaker.
type ServerError struct {
	StatusCode int
	URL        string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d fetching %s", e.StatusCode, e.URL)
}

// TransportError wraps timeouts, connection resets and other failures that
// happened before an HTTP status was received. Transient; retried with
// backoff; no breaker effect.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError marks a 2xx response whose body could not be parsed
// as JSON. Treated as transient and retried until attempts run out.
type MalformedResponseError struct {
	URL string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.URL, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// RetriesExhaustedError wraps the final attempt error once the retry budget
// is spent. Last is always non-nil; every attempt records its outcome, so an
// exhausted loop with nothing captured cannot occur.
type RetriesExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts exhausted fetching %s: %v", e.Attempts, e.URL, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// ParameterError reports the failure of a single parameter-year task. The
// engine converts these into ledger rows instead of propagating them, so one
// bad parameter never aborts a year or a service.
type ParameterError struct {
	Service string
	Year    int
	Code    string
	Label   string
	Err     error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s %d: parameter %s (%s) failed: %v", e.Service, e.Year, e.Label, e.Code, e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }

// IsRetryable reports whether err belongs to a transient class the fetch
// loop may retry locally.
func IsRetryable(err error) bool {
	var (
		rate      *RateLimitedError
		server    *ServerError
		transport *TransportError
		malformed *MalformedResponseError
	)
	return errors.As(err, &rate) || errors.As(err, &server) ||
		errors.As(err, &transport) || errors.As(err, &malformed)
}

// IsCircuitOpen reports whether err, anywhere in its chain, is a
// CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var open *CircuitOpenError
	return errors.As(err, &open)
}
