package churnapi

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps network level failures (dial, timeout, reset).
	ErrTransport = errors.New("churnapi: transport failure")
	// ErrMalformed marks a response that could not be decoded or lacks required fields.
	ErrMalformed = errors.New("churnapi: malformed response")
)

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("churnapi: %s returned status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("churnapi: %s returned status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// IsUpstream reports whether err originated from the analytics API rather
// than from local validation.
func IsUpstream(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrMalformed) || errors.As(err, &statusErr)
}
