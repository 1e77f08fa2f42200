// Package auth guards API routes. Every request authenticates with its own
// access token; the reconciled session is only a shortcut for the token it
// holds.
package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/fault"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/reconciler"
	"github.com/memberportal/memberportal/internal/web/handler"
)

// Messages of the guards.
const (
	MsgSignInRequired = "Please sign in."
	MsgAdminRequired  = "Administrator access required."
)

// Denial is returned by Authenticate when a request may not proceed.
type Denial struct {
	Status  int
	Message string
}

// Error implements error.
func (d *Denial) Error() string {
	return d.Message
}

var errSignInRequired = &Denial{Status: fiber.StatusUnauthorized, Message: MsgSignInRequired}

// Authenticate resolves token to its live session and the active account
// behind it.
func Authenticate(ctx context.Context, deps *handler.Deps, token string) (*identity.Session, reconciler.CurrentUser, error) {
	if token == "" {
		return nil, reconciler.CurrentUser{}, errSignInRequired
	}

	sess, err := deps.Tokens.Lookup(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("failed to look up access token")
		return nil, reconciler.CurrentUser{}, &Denial{Status: fiber.StatusBadGateway, Message: actions.MsgConnection}
	}

	if sess == nil {
		return nil, reconciler.CurrentUser{}, errSignInRequired
	}

	if deps.Session.Holds(token) {
		if u, ok := deps.Session.CurrentUser(); ok && u.UserID == sess.UserID {
			return sess, u, nil
		}
	}

	rec, err := deps.Resolver.Resolve(ctx, sess.UserID)
	if rec == nil {
		reason := reconciler.ReasonProfileNotFound

		switch {
		case errors.Is(err, fault.ErrTimeout):
			return nil, reconciler.CurrentUser{}, &Denial{Status: fiber.StatusGatewayTimeout, Message: reconciler.ReasonTimeout.Message()}
		case errors.Is(err, fault.ErrUnexpected):
			reason = reconciler.ReasonAuthError
		}

		return nil, reconciler.CurrentUser{}, &Denial{Status: fiber.StatusUnauthorized, Message: reason.Message()}
	}

	if rec.Status != models.StatusActive {
		return nil, reconciler.CurrentUser{}, &Denial{
			Status:  fiber.StatusForbidden,
			Message: reconciler.StatusReason(rec.Status).Message(),
		}
	}

	return sess, reconciler.NewCurrentUser(*sess, *rec), nil
}

// RequireUser lets requests with a valid access token of an active account
// through. The user is stored in fiber.Locals under handler.LocalsCurrentUser,
// the session under handler.LocalsSession and in the request context.
func RequireUser(deps *handler.Deps) fiber.Handler {
	return func(c fiber.Ctx) error {
		sess, u, err := Authenticate(c.Context(), deps, handler.AccessToken(c))
		if err != nil {
			var d *Denial
			if errors.As(err, &d) {
				return c.Status(d.Status).JSON(actions.Result{Message: d.Message})
			}

			return c.Status(fiber.StatusUnauthorized).JSON(actions.Result{Message: MsgSignInRequired})
		}

		c.Locals(handler.LocalsCurrentUser, u)
		c.Locals(handler.LocalsSession, sess)
		c.SetContext(identity.NewContext(c.Context(), sess))

		return c.Next()
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(c fiber.Ctx) error {
	u, ok := handler.CurrentUser(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(actions.Result{Message: MsgSignInRequired})
	}

	if !u.IsAdministrator() {
		return c.Status(fiber.StatusForbidden).JSON(actions.Result{Message: MsgAdminRequired})
	}

	return c.Next()
}
