package core

import (
	"errors"
	"fmt"

	v1 "calman.com/worklog/calman/v1"
	"calman.com/worklog/model"
)

// ErrReconnectExhausted is carried by the terminal ChannelError once the live
// channel stops retrying.
var ErrReconnectExhausted = errors.New("live updates stopped after repeated failures")

// ValidationError rejects input before any request is made.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(err error) *ValidationError {
	return &ValidationError{Message: model.DescribeValidation(err), Err: err}
}

// TransportError is a network failure or a non-2xx answer from the backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode is the HTTP status of the failed request, 0 when no response arrived.
func (e *TransportError) StatusCode() int {
	var apiErr *v1.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ServerMessage is the message the backend put in the error body, if any.
func (e *TransportError) ServerMessage() string {
	var apiErr *v1.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// ChannelError reports a dropped push connection.
type ChannelError struct {
	Attempt int
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("live channel (attempt %d): %v", e.Attempt, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}
