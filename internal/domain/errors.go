// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrNotConnected     = errors.New("live-sync client is not connected")
	ErrChannelClosed    = errors.New("notification channel is closed")
	ErrRequestTimeout   = errors.New("request timed out waiting for reply")
	ErrHubNotRunning    = errors.New("event hub is not running")
	ErrSubscriberClosed = errors.New("subscriber is closed")
	ErrKeyNotFound      = errors.New("storage key not found")
)

// ChannelError represents a failure on the notification channel.
type ChannelError struct {
	Op  string // Operation that failed (dial, send, request)
	Err error  // Underlying error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// NewChannelError creates a new ChannelError.
func NewChannelError(op string, err error) *ChannelError {
	return &ChannelError{
		Op:  op,
		Err: err,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
