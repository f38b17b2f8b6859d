package cdp

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by every operation on a Multiplexer whose dispatch
// loop has exited, and to callers still waiting when it exits.
var ErrClosed = errors.New("cdp: connection closed")

// ConnectionError reports a socket read or write failure. It terminates the
// connection and is delivered to every caller that was waiting at the time.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cdp: connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that one round trip exceeded its budget. Other calls
// and the connection itself are unaffected.
type TimeoutError struct {
	ID     uint64
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("cdp: timed out after %s waiting for reply %d", e.After, e.ID)
	}
	return fmt.Sprintf("cdp: timed out after %s waiting for %s (id %d)", e.After, e.Method, e.ID)
}

// Timeout marks the error as a timeout for callers that test for it the
// net.Error way.
func (e *TimeoutError) Timeout() bool {
	return true
}

// ProtocolError reports a reply that lacked an expected field, carried a
// protocol error object, or signalled an evaluation exception.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("cdp: %s failed: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("cdp: %s: %s", e.Method, e.Message)
}

// NotFoundError reports a selector lookup that matched no element.
type NotFoundError struct {
	Selector string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cdp: no element matches selector %q", e.Selector)
}

// MissingField builds the ProtocolError for a reply without an expected field.
func MissingField(method, field string) *ProtocolError {
	return &ProtocolError{
		Method:  method,
		Message: fmt.Sprintf("reply has no %s", field),
	}
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
