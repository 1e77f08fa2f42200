package daemon

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/identity"
)

// accountStore is the part of the account store seeding needs.
type accountStore interface {
	List(ctx context.Context) ([]models.Profile, error)
	Update(ctx context.Context, id string, apply func(p *models.Profile)) (*models.Profile, error)
}

// seed creates the bootstrap administrator while no administrator exists.
func seed(ctx context.Context, cfg *config.Config, provider identity.Provider, store accountStore) error {
	boot := cfg.Identity.Bootstrap
	if boot.Email == "" || boot.Password == "" {
		return nil
	}

	profiles, err := store.List(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}

	for i := range profiles {
		if profiles[i].Role == models.RoleAdministrator {
			return nil
		}
	}

	id, err := provider.SignUp(ctx, identity.SignUpRequest{
		Email:    boot.Email,
		Password: boot.Password,
		Metadata: map[string]string{"first_name": "Portal", "last_name": "Administrator"},
	})
	if errors.Is(err, identity.ErrEmailTaken) {
		log.Warn().Str("email", boot.Email).Msg("bootstrap administrator email is taken by a regular account")
		return nil
	}

	if err != nil {
		return err //nolint:wrapcheck
	}

	_, err = store.Update(ctx, id, func(p *models.Profile) {
		p.Role = models.RoleAdministrator
		p.Status = models.StatusActive
		p.GroupLabel = nil
		p.ChildFirstName = nil
		p.ChildLastName = nil
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	log.Info().Str("email", boot.Email).Msg("bootstrap administrator created")

	return nil
}
