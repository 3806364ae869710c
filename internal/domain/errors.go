package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected          = errors.New("channel not connected")
	ErrInvalidTarget         = errors.New("invalid target")
	ErrDeviceNotConnected    = errors.New("device not connected")
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrExternalAPIFailure    = errors.New("external api failure")
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
)

// ExternalAPIError wraps a failure returned by the spreadsheet or messaging API
type ExternalAPIError struct {
	Service string
	Op      string
	Err     error
}

// NewExternalAPIError wraps err, or returns nil when err is nil
func NewExternalAPIError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalAPIError{Service: service, Op: op, Err: err}
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the upstream error
func (e *ExternalAPIError) Unwrap() []error {
	return []error{ErrExternalAPIFailure, e.Err}
}
