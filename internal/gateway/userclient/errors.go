package userclient

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the user service has no record for the id.
var ErrNotFound = errors.New("user not found")

// StatusError reports a non-success, non-404 status from the user
// service. The gateway maps these to 502.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("user service returned status %d", e.Code)
}

// TransportError reports that the call did not complete at all:
// connection failures, deadline expiry, an open circuit breaker, or an
// undecodable response body.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("user service call failed: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }
