// Package admin serves account administration to administrators.
package admin

import (
	"github.com/gofiber/fiber/v3"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/web/handler"
	"github.com/memberportal/memberportal/internal/web/middleware/auth"
)

// Paths below handler.APIPath.
const (
	Path           = "/admin/users"
	UserPath       = "/:id"
	ApprovePath    = "/:id/approve"
	RejectPath     = "/:id/reject"
	DeactivatePath = "/:id/deactivate"
)

// Service is the admin handler service.
type Service struct {
	actions *actions.Service
}

var _ handler.Service = (*Service)(nil)

// Init registers the routes behind the administrator guard.
func (s *Service) Init(router fiber.Router, deps *handler.Deps) error {
	if router == nil || deps == nil || deps.Actions == nil || deps.Session == nil || deps.Tokens == nil || deps.Resolver == nil {
		return handler.ErrNilDeps
	}

	s.actions = deps.Actions

	r := router.Group(Path, auth.RequireUser(deps), auth.RequireAdmin)
	r.Get(handler.RouterRootPath, s.List)
	r.Patch(UserPath, s.Update)
	r.Post(ApprovePath, s.Approve)
	r.Post(RejectPath, s.Reject)
	r.Post(DeactivatePath, s.Deactivate)

	return nil
}

// List handles GET /api/admin/users.
func (s *Service) List(c fiber.Ctx) error {
	res := s.actions.ListUsers(c.Context())

	return handler.Reply(c, res.Success, fiber.StatusBadGateway, res)
}

// Update handles PATCH /api/admin/users/:id.
func (s *Service) Update(c fiber.Ctx) error {
	u, _ := handler.CurrentUser(c)

	var patch actions.ProfilePatch
	if err := c.Bind().Body(&patch); err != nil {
		return handler.BadRequest(c)
	}

	res := s.actions.UpdateAccount(c.Context(), u.UserID, c.Params("id"), patch)

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}

// Approve handles POST /api/admin/users/:id/approve.
func (s *Service) Approve(c fiber.Ctx) error {
	res := s.actions.Approve(c.Context(), c.Params("id"))

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}

// Reject handles POST /api/admin/users/:id/reject.
func (s *Service) Reject(c fiber.Ctx) error {
	res := s.actions.Reject(c.Context(), c.Params("id"))

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}

// Deactivate handles POST /api/admin/users/:id/deactivate.
func (s *Service) Deactivate(c fiber.Ctx) error {
	u, _ := handler.CurrentUser(c)

	res := s.actions.Deactivate(c.Context(), u.UserID, c.Params("id"))

	return handler.Reply(c, res.Success, fiber.StatusUnprocessableEntity, res)
}
