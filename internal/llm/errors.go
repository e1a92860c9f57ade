package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error is returned by every Client implementation.
type Error struct {
	Provider   string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failure (status %d): %v", e.Provider, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failure: %v", e.Provider, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: rate limits, server
// errors, and timeouts. Cancellation by the caller is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooEarly, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

func statusError(provider string, code int, err error) *Error {
	return &Error{Provider: provider, StatusCode: code, Transient: transientStatus(code), Err: err}
}

func permanentError(provider string, err error) *Error {
	return &Error{Provider: provider, Err: err}
}

// transportError wraps a failed round trip. A caller cancellation stays
// permanent so retry loops stop promptly.
func transportError(ctx context.Context, provider string, err error) *Error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Provider: provider, Err: err}
	}
	return &Error{Provider: provider, Transient: true, Err: err}
}
