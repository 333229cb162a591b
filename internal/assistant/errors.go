package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory classifies a remote failure for retry decisions. The
// category is decided here, at the adapter boundary; orchestration code
// never inspects error text.
type ErrorCategory string

const (
	// CategoryTransient marks failures likely to clear on retry: server
	// errors, rate limits, dropped connections.
	CategoryTransient ErrorCategory = "transient"
	// CategoryPermanent marks failures a retry cannot fix.
	CategoryPermanent ErrorCategory = "permanent"
	// CategoryTimeout marks polling deadlines and request timeouts.
	CategoryTimeout ErrorCategory = "timeout"
)

// RemoteError is a failure reported by (or on the way to) the remote
// conversation service.
type RemoteError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("assistant: %s (%s): %s", e.Category, e.Code, e.Message)
	}
	return fmt.Sprintf("assistant: %s: %s", e.Category, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Transient reports whether retrying the operation may succeed.
func (e *RemoteError) Transient() bool { return e.Category == CategoryTransient }

// AsRemoteError unwraps err to a *RemoteError if one is in its chain.
func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// classifyStatus maps an HTTP response status plus the service's error
// envelope onto a category. 429 and 5xx are worth retrying, the rest of
// the 4xx range is not.
func classifyStatus(status int, code, message string) *RemoteError {
	category := CategoryPermanent
	switch {
	case status == http.StatusTooManyRequests:
		category = CategoryTransient
	case status == http.StatusRequestTimeout:
		category = CategoryTimeout
	case status >= 500:
		category = CategoryTransient
	}
	if message == "" {
		message = fmt.Sprintf("status %d", status)
	}
	return &RemoteError{Category: category, Code: code, Message: message}
}

// ClassifyRunFailure maps a failed run's error code onto a category.
// The remote service reports capacity problems as rate_limit_exceeded or
// server_error; everything else is treated as permanent.
func ClassifyRunFailure(code, message string) *RemoteError {
	category := CategoryPermanent
	switch code {
	case "rate_limit_exceeded", "server_error":
		category = CategoryTransient
	}
	return &RemoteError{Category: category, Code: code, Message: message}
}

// transportError wraps a failure to reach the service at all. Context
// expiry keeps its identity so callers can tell cancellation from a
// remote fault.
func transportError(err error) *RemoteError {
	category := CategoryTransient
	if errors.Is(err, context.DeadlineExceeded) {
		category = CategoryTimeout
	}
	return &RemoteError{Category: category, Message: err.Error(), Err: err}
}
