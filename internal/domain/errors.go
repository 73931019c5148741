package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict means a session already exists at (coach, start time).
	ErrConflict = errors.New("time slot already taken")
	// ErrCapacityExceeded means a booking would push confirmed bookings past capacity.
	ErrCapacityExceeded = errors.New("session is full")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	// ErrInvalidTransition means the session status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError marks malformed caller input. Not retryable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConfigurationError marks a coach whose setup blocks generation (no default
// room). Generation skips the coach and reports it; it never aborts the batch.
type ConfigurationError struct {
	CoachID string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("coach %s: %s", e.CoachID, e.Reason)
}
