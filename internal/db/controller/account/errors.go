package account

import (
	"errors"
	"fmt"

	"github.com/memberportal/memberportal/internal/fault"
)

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")

	// ErrProfileIDEmpty is returned when a profile id is required but empty.
	ErrProfileIDEmpty = fmt.Errorf("%w: profile id cannot be empty", fault.ErrValidation)

	// ErrProfileNotFound is returned when no profile matches.
	ErrProfileNotFound = fmt.Errorf("profile %w", fault.ErrNotFound)

	// ErrProfileAlreadyExists is returned when the id or email is already taken.
	ErrProfileAlreadyExists = fmt.Errorf("%w: profile with id or email already exists", fault.ErrValidation)
)

// upstream marks a database failure.
func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", fault.ErrUpstream, op, err)
}
