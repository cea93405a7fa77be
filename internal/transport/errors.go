package transport

import (
	"errors"
	"fmt"
	"time"
)

// ErrForbidden signals that the recipient has blocked the sender (or is
// otherwise permanently unreachable). Callers treat this as a terminal
// state for the recipient, not a system fault.
var ErrForbidden = errors.New("transport: recipient unreachable")

// ErrBadRequest signals a request the platform rejected outright.
var ErrBadRequest = errors.New("transport: bad request")

// RateLimitedError signals the platform asked the sender to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("transport: rate limited, retry after %s", e.RetryAfter)
}

// NetworkError wraps a transient connectivity failure.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "transport: network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsForbidden reports whether err is a recipient-unreachable error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// RetryAfter extracts the back-off duration from a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
