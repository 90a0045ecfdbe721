package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrClosed is returned for tasks submitted to, or still queued in, a closed dispatcher.
var ErrClosed = errors.New("dispatcher closed")

// StatusError is a non-2xx answer from an upstream API.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is the server supplied hint, zero when none was given.
	RetryAfter time.Duration
}

// NewStatusError builds a StatusError and picks up any retry hint from the
// headers or the body.
func NewStatusError(code int, header http.Header, body string) *StatusError {
	e := &StatusError{StatusCode: code, Body: body}
	if d, ok := ParseRetryAfter(header, body); ok {
		e.RetryAfter = d
	}
	return e
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, body)
}

// RetriesExhaustedError is returned by Retry once the retry budget is spent.
type RetriesExhaustedError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("max retries exceeded for %s after %d attempts: %v", e.Model, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth another attempt: rate limiting,
// upstream 5xx and transport level failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrClosed) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") ||
		strings.Contains(msg, "EOF")
}
