package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// Credential is a sign-in identity owned by the built-in identity provider.
type Credential struct {
	// UserID is the uuid handed out as the identity provider user id.
	UserID string `gorm:"primaryKey;size:64"`
	// Email is the sign-in name.
	Email string `gorm:"uniqueIndex;size:255;not null"`
	// PasswordHash is the Argon2id hash of the password.
	PasswordHash string `gorm:"size:255"`
	// ExternalID is the OIDC subject once the account signed in through OIDC.
	ExternalID string `gorm:"size:255;index"`
	// Metadata holds the provisioning data given at sign-up.
	Metadata map[string]string `gorm:"serializer:json"`
	// CreatedAt is managed by GORM.
	CreatedAt time.Time
	// UpdatedAt is managed by GORM.
	UpdatedAt time.Time
}

// TableName overrides the table name used by Credential to `credentials`.
func (Credential) TableName() string {
	return "credentials"
}

// HashPassword hashes a plaintext password using the Argon2id default parameters.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams) //nolint:wrapcheck
}

// VerifyPassword compares password against the stored hash in constant time.
func (c *Credential) VerifyPassword(password string) bool {
	if c.PasswordHash == "" {
		return false
	}

	match, err := argon2id.ComparePasswordAndHash(password, c.PasswordHash)
	if err != nil {
		log.Error().Err(err).Str("user", c.UserID).Msg("failed to verify password")
		return false
	}

	return match
}
