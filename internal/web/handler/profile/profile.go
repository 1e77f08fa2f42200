// Package profile lets the signed-in user edit their own profile.
package profile

import (
	"github.com/gofiber/fiber/v3"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/web/handler"
	"github.com/memberportal/memberportal/internal/web/middleware/auth"
)

// Path below handler.APIPath.
const Path = "/profile"

// Service is the profile handler service.
type Service struct {
	actions *actions.Service
}

var _ handler.Service = (*Service)(nil)

// Init registers the routes.
func (s *Service) Init(router fiber.Router, deps *handler.Deps) error {
	if router == nil || deps == nil || deps.Actions == nil || deps.Session == nil || deps.Tokens == nil || deps.Resolver == nil {
		return handler.ErrNilDeps
	}

	s.actions = deps.Actions

	router.Patch(Path, auth.RequireUser(deps), s.Patch)

	return nil
}

// Patch handles PATCH /api/profile. Role and status can not be changed here.
func (s *Service) Patch(c fiber.Ctx) error {
	u, _ := handler.CurrentUser(c)

	var patch actions.ProfilePatch
	if err := c.Bind().Body(&patch); err != nil {
		return handler.BadRequest(c)
	}

	res := s.actions.UpdateProfile(c.Context(), u.UserID, patch.SelfService())

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}
