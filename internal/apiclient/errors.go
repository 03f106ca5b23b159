package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrSessionExpired signals that the backend rejected the session token on an
// auth endpoint and the local session has been cleared. Callers should send
// the user back to login.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-2xx response from the backend API
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string

	wrapped error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d on %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("api error %d on %s", e.StatusCode, e.Endpoint)
}

func (e *APIError) Unwrap() error {
	return e.wrapped
}

// IsNetworkError reports whether err is a network-class failure (no response,
// timeout, connection refused) as opposed to a response the backend actually
// sent. Network failures must not mutate session state: a flaky link is not a
// logout signal.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusCode returns the HTTP status carried by err, or 0 for non-API errors
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
