package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthError is an authentication or permission failure. It is never retried.
type AuthError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication error from %s (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RequestError is a failure caused by the request itself, such as a 400 for
// an unknown model. It is never retried.
type RequestError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s rejected the request (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// TransientError is a network failure, rate limit or server error that may
// succeed on a later attempt.
type TransientError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transient failure (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transient failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// TimeoutError means one attempt exceeded its deadline. Distinct from a
// transport failure, but retried like one.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
	Attempt  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s (attempt %d)", e.Provider, e.Timeout, e.Attempt)
}

// ModelUnavailableError is returned once every attempt failed with a
// retryable error. Last is the final failure observed.
type ModelUnavailableError struct {
	Provider string
	Attempts int
	Last     error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable after %d attempts: %v", e.Provider, e.Attempts, e.Last)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Last }

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	var te *TransientError
	var to *TimeoutError
	return errors.As(err, &te) || errors.As(err, &to)
}

// classifyStatus maps a non-200 HTTP status to the error taxonomy.
func classifyStatus(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: provider, StatusCode: status, Message: msg}
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return &TransientError{Provider: provider, StatusCode: status, Err: errors.New(msg)}
	default:
		return &RequestError{Provider: provider, StatusCode: status, Message: msg}
	}
}
