// Package handler holds what the JSON API handlers share: their
// dependencies, the Service contract and the response helpers.
package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/directory"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/profile"
	"github.com/memberportal/memberportal/internal/reconciler"
)

const (
	// APIPath prefixes every json route.
	APIPath = "/api"

	// RouterRootPath is the root path of a route group.
	RouterRootPath = "/"

	// LocalsCurrentUser is the fiber.Locals key of the signed-in user.
	LocalsCurrentUser = "CurrentUser"

	// LocalsSession is the fiber.Locals key of the request's identity session.
	LocalsSession = "Session"

	// SessionCookie carries the access token of a browser session.
	SessionCookie = "session"

	bearerPrefix = "Bearer "
)

// ErrNilDeps is returned by Init when a required dependency is missing.
var ErrNilDeps = errors.New("router or deps is nil")

// Session is the reconciled session.
type Session interface {
	State() reconciler.State
	CurrentUser() (reconciler.CurrentUser, bool)
	SetLocation(route reconciler.Route)
	Holds(token string) bool
}

// Tokens looks up the identity session behind an access token.
type Tokens interface {
	Lookup(ctx context.Context, token string) (*identity.Session, error)
}

// Resolver fetches the account record of a session's user.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*profile.Record, error)
}

// Groups is the group directory.
type Groups interface {
	Get() []string
	Reload(ctx context.Context) []string
	State() directory.LoadState
}

// OIDC is the external sign-in flow.
type OIDC interface {
	OIDCEnabled() bool
	AuthCodeURL() (authURL, state string, err error)
	SignInWithCode(ctx context.Context, code string) (*identity.Session, error)
}

// Deps are handed to every handler.
type Deps struct {
	Config   *config.Config
	Actions  *actions.Service
	Session  Session
	Groups   Groups
	OIDC     OIDC
	Tokens   Tokens
	Resolver Resolver
}

// Service is the interface for a web handler service.
type Service interface {
	Init(router fiber.Router, deps *Deps) error
}

// Reply writes an action result. Failures get status code, successes 200.
func Reply(c fiber.Ctx, success bool, code int, body any) error {
	if !success {
		c.Status(code)
	}

	return c.JSON(body)
}

// BadRequest answers an unreadable request body.
func BadRequest(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(actions.Result{Message: "Malformed request."})
}

// CurrentUser returns the user stored by the auth middleware.
func CurrentUser(c fiber.Ctx) (reconciler.CurrentUser, bool) {
	u, ok := c.Locals(LocalsCurrentUser).(reconciler.CurrentUser)

	return u, ok
}

// RequestSession returns the identity session stored by the auth middleware.
func RequestSession(c fiber.Ctx) (*identity.Session, bool) {
	s, ok := c.Locals(LocalsSession).(*identity.Session)

	return s, ok && s != nil
}

// AccessToken returns the token a request authenticates with: the session
// cookie, or a bearer token for clients without cookies.
func AccessToken(c fiber.Ctx) string {
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}

	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}

	return ""
}

// SetSessionCookie hands the access token to a browser. The cookie is only
// sent over https outside dev mode.
func SetSessionCookie(c fiber.Ctx, cfg *config.Config, token string, expires time.Time) {
	cookie := &fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     RouterRootPath,
		Secure:   true,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}

	if !expires.IsZero() {
		cookie.Expires = expires
	}

	if cfg == nil || cfg.DevMode {
		cookie.Secure = false
	}

	c.Cookie(cookie)
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(c fiber.Ctx, cfg *config.Config) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     RouterRootPath,
		MaxAge:   -1,
		Secure:   cfg != nil && !cfg.DevMode,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
