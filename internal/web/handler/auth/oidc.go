package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/web/handler"
)

const stateTTL = 5 * time.Minute

// oidcFlow runs the authorization code flow. State tokens are kept in
// memory for stateTTL and are single use.
type oidcFlow struct {
	provider handler.OIDC
	actions  *actions.Service
	cfg      *config.Config
	home     string

	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func newOIDCFlow(p handler.OIDC, a *actions.Service, cfg *config.Config) *oidcFlow {
	home := "/"
	if cfg != nil && cfg.Webserver.URL != "" {
		home = cfg.Webserver.URL
	}

	return &oidcFlow{
		provider: p,
		actions:  a,
		cfg:      cfg,
		home:     home,
		states:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Start handles GET /api/auth/oidc by redirecting to the provider.
func (f *oidcFlow) Start(c fiber.Ctx) error {
	authURL, state, err := f.provider.AuthCodeURL()
	if err != nil {
		log.Error().Err(err).Msg("failed to build oidc auth url")
		return c.Status(fiber.StatusInternalServerError).JSON(actions.Result{Message: actions.MsgUnexpected})
	}

	f.remember(state)

	return c.Redirect().Status(fiber.StatusFound).To(authURL)
}

// Callback handles GET /api/auth/oidc/callback.
func (f *oidcFlow) Callback(c fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || !f.redeem(state) {
		log.Warn().Str("state", state).Msg("oidc callback with missing code or unknown state")
		return c.Status(fiber.StatusBadRequest).JSON(actions.Result{Message: "Invalid sign-in attempt."})
	}

	sess, err := f.provider.SignInWithCode(c.Context(), code)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(actions.Result{Message: "No portal account is linked to this identity."})
	}

	if err != nil {
		log.Error().Err(err).Msg("oidc sign-in failed")
		return c.Status(fiber.StatusBadGateway).JSON(actions.Result{Message: actions.MsgConnection})
	}

	res := f.actions.Admit(c.Context(), sess)
	if !res.Success {
		return c.Status(fiber.StatusForbidden).JSON(res)
	}

	var expires time.Time
	if res.ExpiresAt != nil {
		expires = *res.ExpiresAt
	}

	handler.SetSessionCookie(c, f.cfg, res.AccessToken, expires)

	return c.Redirect().Status(fiber.StatusFound).To(f.home)
}

func (f *oidcFlow) remember(state string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for s, exp := range f.states {
		if now.After(exp) {
			delete(f.states, s)
		}
	}

	f.states[state] = now.Add(stateTTL)
}

func (f *oidcFlow) redeem(state string) bool {
	if state == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	exp, ok := f.states[state]
	delete(f.states, state)

	return ok && !f.now().After(exp)
}
