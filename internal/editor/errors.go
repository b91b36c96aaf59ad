package editor

import (
	"errors"
	"fmt"
)

// CallError is a failed backend call: a transport error surfaced by the API,
// a non-success status, or empty edited content.
type CallError struct {
	Backend    string
	StatusCode int // 0 when not an HTTP-level failure
	Message    string
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}

// Retryable reports whether the failure is transient (rate limit or server
// error) and worth retrying on the same backend.
func (e *CallError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable checks if an error chain contains a retryable call failure.
func IsRetryable(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Retryable()
}

// ExhaustedError means every backend in the preference order failed. Last is
// the final backend's error, not the first.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d editing backends failed, last error: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
