// Package profile resolves the account record that authorizes a session.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/fault"
	"github.com/memberportal/memberportal/internal/timeout"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 30 * time.Second

var (
	// ErrMissingUserID is returned without a lookup when the user id is empty.
	ErrMissingUserID = fmt.Errorf("%w: user id is required", fault.ErrValidation)

	// ErrDuplicateProfile is returned when more than one record matches a user id.
	ErrDuplicateProfile = fmt.Errorf("duplicate profile: %w", fault.ErrNotFound)

	// ErrProfileNotFound is returned when no record matches a user id.
	ErrProfileNotFound = fmt.Errorf("profile %w", fault.ErrNotFound)
)

// Record holds the fields needed to authorize a session.
type Record struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Role       models.Role
	GroupLabel *string
	Status     models.Status
}

// FromModel projects a stored profile onto a Record.
func FromModel(p *models.Profile) *Record {
	r := &Record{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Role:      p.Role,
		Status:    p.Status,
	}

	if p.GroupLabel != nil {
		g := *p.GroupLabel
		r.GroupLabel = &g
	}

	return r
}

// Source loads the minimal columns of the profiles with a user id.
type Source interface {
	FindMinimal(ctx context.Context, id string) ([]models.Profile, error)
}

// Resolver looks up records under a deadline.
type Resolver struct {
	source  Source
	timeout time.Duration
}

// NewResolver returns a Resolver on source. A non-positive d uses DefaultTimeout.
func NewResolver(source Source, d time.Duration) *Resolver {
	if d <= 0 {
		d = DefaultTimeout
	}

	return &Resolver{source: source, timeout: d}
}

// Resolve returns the record of userID. Every miss returns a nil record so
// callers handle "no usable profile" as one case; the error only says why:
// ErrMissingUserID, ErrProfileNotFound, ErrDuplicateProfile, a *timeout.Error
// or an upstream failure.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	rows, err := timeout.Call(ctx, r.timeout, "fetch profile", func(ctx context.Context) ([]models.Profile, error) {
		return r.source.FindMinimal(ctx, userID)
	})

	switch {
	case err != nil:
		if fault.KindOf(err) == fault.Unexpected && !errors.Is(err, fault.ErrUnexpected) {
			err = fmt.Errorf("%w: %w", fault.ErrUpstream, err)
		}
	case len(rows) == 0:
		err = ErrProfileNotFound
	case len(rows) > 1:
		err = ErrDuplicateProfile
	default:
		return FromModel(&rows[0]), nil
	}

	log.Warn().Err(err).Str("user", userID).Msg("no usable profile")

	return nil, err
}
