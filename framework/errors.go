package framework

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NavigationError means a page could not be loaded: the target was unreachable, answered
// with a status outside 200-399, or never became quiet within the timeout.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("navigation to %s failed: %s", e.URL, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("navigation to %s returned HTTP %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("navigation to %s failed", e.URL)
	}
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError means a selector did not resolve to any element before the
// polling timeout expired.
type ElementNotFoundError struct {
	Selector string
	Timeout  time.Duration
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matching %q appeared within %s", e.Selector, e.Timeout)
}

// AssertionFailure means one or more expectations evaluated to false.
type AssertionFailure struct {
	Reasons []string
}

func (e *AssertionFailure) Error() string {
	if len(e.Reasons) == 1 {
		return e.Reasons[0]
	}
	return fmt.Sprintf("%d expectations failed: %v", len(e.Reasons), e.Reasons)
}

// ConnectionError is a network-level failure: the request never produced an HTTP response.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %s", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means a run-level or per-request deadline was exceeded.
type TimeoutError struct {
	Operation string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Operation, e.After)
	}
	return fmt.Sprintf("%s timed out", e.Operation)
}

// IsTransient reports whether err is one of the failures that the retry policy is allowed
// to retry.
func IsTransient(err error) bool {
	var nav *NavigationError
	var notFound *ElementNotFoundError
	var conn *ConnectionError
	return errors.As(err, &nav) || errors.As(err, &notFound) || errors.As(err, &conn)
}

// IsTimeout reports whether err represents an exceeded deadline, either as a TimeoutError or
// as a context deadline.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t) || errors.Is(err, context.DeadlineExceeded)
}

// IsFailure reports whether err is an expected kind of test failure, as opposed to an
// unexpected error in the harness or the target.
func IsFailure(err error) bool {
	var assertion *AssertionFailure
	var nav *NavigationError
	var notFound *ElementNotFoundError
	return errors.As(err, &assertion) || errors.As(err, &nav) || errors.As(err, &notFound)
}
