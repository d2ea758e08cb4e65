package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned by the guard when no auth token could be installed.
	// It is fatal for the call and never retried.
	ErrUnauthorized = errors.New("recommend: set auth token")

	// ErrSearchNotImplemented is returned by a SearchAPI that has no search bound to it.
	ErrSearchNotImplemented = errors.New("recommend: search not implemented")
)

// Error is a recoverable API failure: a non-2xx response, a transport failure after
// retries, or a malformed response body.
type Error struct {
	StatusCode int    // 0 when the failure never produced a response
	Message    string
	Body       []byte
	Err        error
}

// NewError builds an API error for the given status and message.
func NewError(status int, msg string) *Error {
	return &Error{StatusCode: status, Message: msg}
}

// WrapError builds an API error around a lower-level cause.
func WrapError(msg string, err error) *Error {
	return &Error{Message: msg, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("recommend api %d: %s: %v", e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("recommend api %d: %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("recommend api: %s: %v", e.Message, e.Err)
	default:
		return "recommend api: " + e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsAPIError reports whether err is, or wraps, an *Error.
func IsAPIError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
