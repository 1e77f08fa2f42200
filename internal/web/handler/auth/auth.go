// Package auth serves sign-in, sign-out, registration and the password
// flows. Results use the actions.Result shape with 200 on success. A
// successful sign-in sets the session cookie and returns the access token.
package auth

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/web/handler"
	guard "github.com/memberportal/memberportal/internal/web/middleware/auth"
)

// Paths below handler.APIPath.
const (
	Path             = "/auth"
	LoginPath        = "/login"
	LogoutPath       = "/logout"
	RegisterPath     = "/register"
	ResetPath        = "/password/reset"
	RecoverPath      = "/password/recover"
	PasswordPath     = "/password"
	OIDCPath         = "/oidc"
	OIDCCallbackPath = "/oidc/callback"
)

// ResetRequest asks for a reset link.
type ResetRequest struct {
	Email string `json:"email"`
}

// RecoverRequest redeems a reset token.
type RecoverRequest struct {
	Token string `json:"token"`
}

// Service is the auth handler service.
type Service struct {
	actions *actions.Service
	cfg     *config.Config
	oidc    *oidcFlow
}

var _ handler.Service = (*Service)(nil)

// Init registers the routes.
func (s *Service) Init(router fiber.Router, deps *handler.Deps) error {
	if router == nil || deps == nil || deps.Actions == nil || deps.Session == nil || deps.Tokens == nil || deps.Resolver == nil {
		return handler.ErrNilDeps
	}

	s.actions = deps.Actions
	s.cfg = deps.Config

	r := router.Group(Path)
	r.Post(LoginPath, s.Login)
	r.Post(LogoutPath, s.Logout)
	r.Post(RegisterPath, s.Register)
	r.Post(ResetPath, s.RequestReset)
	r.Post(RecoverPath, s.Recover)
	r.Post(PasswordPath, guard.RequireUser(deps), s.UpdatePassword)

	if deps.OIDC != nil && deps.OIDC.OIDCEnabled() {
		s.oidc = newOIDCFlow(deps.OIDC, deps.Actions, deps.Config)

		r.Get(OIDCPath, s.oidc.Start)
		r.Get(OIDCCallbackPath, s.oidc.Callback)
	}

	return nil
}

// Login handles POST /api/auth/login.
func (s *Service) Login(c fiber.Ctx) error {
	var req actions.LoginRequest
	if err := c.Bind().Body(&req); err != nil {
		return handler.BadRequest(c)
	}

	res := s.actions.Login(c.Context(), req)
	if res.Success {
		s.issue(c, res)
	}

	return handler.Reply(c, res.Success, fiber.StatusUnauthorized, res)
}

// issue sets the session cookie of a successful sign-in.
func (s *Service) issue(c fiber.Ctx, res actions.LoginResult) {
	if res.AccessToken == "" {
		return
	}

	var expires time.Time
	if res.ExpiresAt != nil {
		expires = *res.ExpiresAt
	}

	handler.SetSessionCookie(c, s.cfg, res.AccessToken, expires)
}

// Logout handles POST /api/auth/logout. Only the caller's own session ends.
func (s *Service) Logout(c fiber.Ctx) error {
	token := handler.AccessToken(c)
	handler.ClearSessionCookie(c, s.cfg)

	if token == "" {
		return c.JSON(actions.Result{Success: true})
	}

	res := s.actions.Logout(c.Context(), token)

	return handler.Reply(c, res.Success, fiber.StatusBadGateway, res)
}

// Register handles POST /api/auth/register.
func (s *Service) Register(c fiber.Ctx) error {
	var req actions.RegisterRequest
	if err := c.Bind().Body(&req); err != nil {
		return handler.BadRequest(c)
	}

	res := s.actions.Register(c.Context(), req)

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}

// RequestReset handles POST /api/auth/password/reset.
func (s *Service) RequestReset(c fiber.Ctx) error {
	var req ResetRequest
	if err := c.Bind().Body(&req); err != nil {
		return handler.BadRequest(c)
	}

	res := s.actions.RequestPasswordReset(c.Context(), req.Email)

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}

// Recover handles POST /api/auth/password/recover.
func (s *Service) Recover(c fiber.Ctx) error {
	var req RecoverRequest
	if err := c.Bind().Body(&req); err != nil {
		return handler.BadRequest(c)
	}

	res := s.actions.RecoverSession(c.Context(), req.Token)
	if res.Success {
		s.issue(c, res)
	}

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}

// UpdatePassword handles POST /api/auth/password.
func (s *Service) UpdatePassword(c fiber.Ctx) error {
	var req actions.PasswordRequest
	if err := c.Bind().Body(&req); err != nil {
		return handler.BadRequest(c)
	}

	res := s.actions.UpdatePassword(c.Context(), req)

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}
