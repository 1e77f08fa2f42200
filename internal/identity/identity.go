// Package identity describes the identity provider the session core depends on.
package identity

import (
	"context"
	"errors"
	"time"
)

// EventKind is the kind of a session lifecycle notification.
type EventKind string

// Event kinds emitted by a Provider.
const (
	InitialSession          EventKind = "initial-session"
	SignedIn                EventKind = "signed-in"
	SignedOut               EventKind = "signed-out"
	UserUpdated             EventKind = "user-updated"
	PasswordRecoveryStarted EventKind = "password-recovery-started"
)

// Session is a signed-in identity as issued by the provider.
type Session struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Event is a lifecycle notification. Session is nil when nobody is signed in.
type Event struct {
	Kind    EventKind
	Session *Session
}

// SignUpRequest carries the credentials and provisioning metadata of a new account.
type SignUpRequest struct {
	Email    string
	Password string
	Metadata map[string]string
}

// Provider is the identity provider contract.
type Provider interface {
	// SignIn verifies credentials and opens a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignUp creates an account and returns its user id.
	SignUp(ctx context.Context, req SignUpRequest) (string, error)
	// SignOut closes the current session.
	SignOut(ctx context.Context) error
	// UpdatePassword changes the password of the signed-in user.
	UpdatePassword(ctx context.Context, password string) error
	// RequestPasswordReset starts the provider's reset flow, redirectTo receives the token.
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	// Subscribe registers fn for lifecycle events and returns the unsubscribe func.
	Subscribe(fn func(Event)) (unsubscribe func())
}

var (
	// ErrInvalidCredentials is returned when email and password do not match.
	ErrInvalidCredentials = errors.New("invalid login credentials")

	// ErrEmailTaken is returned by SignUp when the email is already registered.
	ErrEmailTaken = errors.New("user already registered")

	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidResetToken is returned for unknown or expired password reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

type sessionKey struct{}

// NewContext returns a copy of ctx carrying s, the session a request acts for.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)

	return s
}
