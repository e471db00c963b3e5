package fund

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references an unknown member.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when caller input violates a precondition.
	// Nothing is written when it is returned.
	ErrValidation = errors.New("validation failed")
)

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, fmt.Sprintf(format, args...))
}

func memberNotFound(id int) error {
	return fmt.Errorf("member %d: %w", id, ErrNotFound)
}
