package actions

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/db/models"
)

// Sign-up metadata keys.
const (
	metaFirstName      = "first_name"
	metaLastName       = "last_name"
	metaPhone          = "phone"
	metaRole           = "role"
	metaGroup          = "user_group"
	metaChildFirstName = "child_first_name"
	metaChildLastName  = "child_last_name"
)

// Provisioner returns the sign-up hook that creates the pending account
// record from the registration metadata.
func Provisioner(store Store) func(ctx context.Context, userID, email string, metadata map[string]string) error {
	return func(ctx context.Context, userID, email string, metadata map[string]string) error {
		role := models.Role(metadata[metaRole])

		switch role {
		case models.RoleMember, models.RoleInstructor:
		default:
			role = models.RoleMember
		}

		p := &models.Profile{
			ID:        userID,
			Email:     email,
			FirstName: metadata[metaFirstName],
			LastName:  metadata[metaLastName],
			Phone:     metadata[metaPhone],
			Role:      role,
			Status:    models.StatusPending,
		}

		if role == models.RoleMember {
			p.GroupLabel = value(metadata, metaGroup)
			p.ChildFirstName = value(metadata, metaChildFirstName)
			p.ChildLastName = value(metadata, metaChildLastName)
		}

		if err := store.Create(ctx, p); err != nil {
			return err //nolint:wrapcheck
		}

		log.Debug().Str("user", userID).Msg("pending profile provisioned")

		return nil
	}
}

func value(m map[string]string, key string) *string {
	v := strings.TrimSpace(m[key])
	if v == "" {
		return nil
	}

	return &v
}
