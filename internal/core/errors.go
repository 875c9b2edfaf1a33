package core

import (
	"breadstamp/pkg/domain"
	"errors"
	"fmt"
)

// ErrInvalidInput marks requests rejected before reaching the store.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
