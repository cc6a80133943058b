package fetch

import (
	"errors"
	"fmt"
	"net"
)

// NetworkError is a transport-level failure: no HTTP response was
// received at all.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a timeout.
func (e *NetworkError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// RemoteError is a non-2xx response from the upstream. Body holds the
// response payload, truncated to maxErrBody.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// ParseError means the response arrived but did not match the expected
// shape.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
