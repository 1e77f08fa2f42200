package local

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending them.
type LogMailer struct{}

// SendPasswordReset implements Mailer.
func (LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	log.Info().Str("email", email).Str("link", link).Msg("password reset requested")

	return nil
}
