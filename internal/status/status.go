package status

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("booking: validation failed")
	ErrInvalidTransition = errors.New("booking: invalid status transition")
	ErrPermissionDenied  = errors.New("booking: permission denied")
	ErrNotFound          = errors.New("booking: not found")
	ErrPartialFailure    = errors.New("booking: partial failure")
	ErrBookingBusy       = errors.New("booking: another operation is in progress")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func PermissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// PartialFailure wraps the error of a best-effort sub-step.
func PartialFailure(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPartialFailure, step, err)
}
