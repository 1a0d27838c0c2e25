// File: pkg/webdriver/errors.go
package webdriver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("webdriver: timeout")
	// ErrRemote matches every *RemoteError.
	ErrRemote = errors.New("webdriver: remote error")
)

// TimeoutError reports a bounded wait whose condition never held.
type TimeoutError struct {
	Timeout time.Duration
	// Last is the most recent condition error swallowed as "not yet", if any.
	Last error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("condition not met within %s (last error: %v)", e.Timeout, e.Last)
	}
	return fmt.Sprintf("condition not met within %s", e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteError is a failure reported by the browser or WebDriver endpoint
// while executing a command, such as a missing element or a script error.
type RemoteError struct {
	Command CommandName
	// Code is the W3C error code, e.g. "no such element".
	Code    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Command != "" {
		return fmt.Sprintf("%s: %s", e.Command, msg)
	}
	return msg
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemote reports whether err is or wraps a *RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
