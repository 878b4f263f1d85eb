// Package retry implements the retry policy for remote collaborators:
// an error taxonomy, jittered exponential backoff that honours Retry-After
// hints, and a circuit breaker per collaborator.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// TransientNetworkError is a failure worth retrying: timeouts, dropped
// connections and 5xx responses.
type TransientNetworkError struct {
	StatusCode int
	Err        error
}

func (e *TransientNetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// AuthError is a 401/403 response. It is never retried.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError is a 429 response. RetryAfter is the server hint, zero
// when none was given.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// FromStatus classifies an HTTP status code. It returns nil for codes that
// are not errors and err unchanged for client errors that retrying cannot fix.
func FromStatus(code int, retryAfter string, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(code))
	}
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &AuthError{StatusCode: code, Err: err}
	case code == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: ParseRetryAfter(retryAfter, time.Now()), Err: err}
	case code == http.StatusRequestTimeout || code >= 500:
		return &TransientNetworkError{StatusCode: code, Err: err}
	default:
		return err
	}
}

// ParseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date. Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// Classify maps an arbitrary error onto the taxonomy. Errors already
// classified pass through; unknown errors are returned unchanged and are not
// retried.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		transient *TransientNetworkError
		auth      *AuthError
		limited   *RateLimitError
	)
	if errors.As(err, &transient) || errors.As(err, &auth) || errors.As(err, &limited) {
		return err
	}

	if apiErr, ok := asGenaiError(err); ok {
		return fromGenai(apiErr, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientNetworkError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientNetworkError{Err: err}
	}

	return err
}

func asGenaiError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

func fromGenai(apiErr genai.APIError, err error) error {
	if apiErr.Code == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: genaiRetryDelay(apiErr), Err: err}
	}
	if classified := FromStatus(apiErr.Code, "", err); classified != nil {
		return classified
	}
	return err
}

// genaiRetryDelay reads the RetryInfo detail Google APIs attach to 429s.
func genaiRetryDelay(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// IsRetryable reports whether err, once classified, should be retried.
func IsRetryable(err error) bool {
	var (
		transient *TransientNetworkError
		limited   *RateLimitError
	)
	return errors.As(err, &transient) || errors.As(err, &limited)
}

// reason is the metrics label for a classified error.
func reason(err error) string {
	var (
		transient *TransientNetworkError
		auth      *AuthError
		limited   *RateLimitError
	)
	switch {
	case errors.As(err, &limited):
		return "rate_limit"
	case errors.As(err, &auth):
		return "auth"
	case errors.As(err, &transient):
		return "transient"
	default:
		return "other"
	}
}
