// Package session exposes the reconciled session, the group directory and
// the navigation hints of the last reconciliation. Only the holder of the
// reconciled session's access token sees it; any other caller gets the view
// of its own token.
package session

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/directory"
	"github.com/memberportal/memberportal/internal/reconciler"
	"github.com/memberportal/memberportal/internal/web/handler"
	"github.com/memberportal/memberportal/internal/web/middleware/auth"
)

// Paths below handler.APIPath.
const (
	Path         = "/session"
	GroupsPath   = "/groups"
	LocationPath = "/location"
)

// User is the json view of the current user.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	GroupName string `json:"groupName,omitempty"`
	Status    string `json:"status"`
}

// View is the json view of the session.
type View struct {
	Phase         string   `json:"phase"`
	Authenticated bool     `json:"authenticated"`
	User          *User    `json:"user,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Message       string   `json:"message,omitempty"`
	Seq           uint64   `json:"seq"`
	Navigate      []string `json:"navigate,omitempty"`
}

// LocationRequest reports the screen the client shows.
type LocationRequest struct {
	Route string `json:"route"`
}

// Service is the session handler service.
type Service struct {
	deps *handler.Deps
	last atomic.Pointer[reconciler.Outcome]
}

var _ handler.Service = (*Service)(nil)

// Init registers the routes.
func (s *Service) Init(router fiber.Router, deps *handler.Deps) error {
	if router == nil || deps == nil || deps.Session == nil || deps.Groups == nil || deps.Tokens == nil || deps.Resolver == nil {
		return handler.ErrNilDeps
	}

	s.deps = deps

	router.Get(Path, s.Get)
	router.Get(GroupsPath, s.Groups)
	router.Post(LocationPath, s.Location)

	return nil
}

// Follow keeps the last outcome until ctx ends, its navigation hints are
// served with the state they belong to.
func (s *Service) Follow(ctx context.Context, outcomes <-chan reconciler.Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-outcomes:
			s.last.Store(&o)

			if len(o.Navigate) > 0 {
				log.Debug().Str("event", string(o.Event)).Interface("navigate", o.Navigate).Msg("navigation requested")
			}
		}
	}
}

// Get returns the session of the caller.
func (s *Service) Get(c fiber.Ctx) error {
	token := handler.AccessToken(c)

	if s.deps.Session.Holds(token) {
		return c.JSON(s.reconciled())
	}

	if token == "" {
		return c.JSON(View{Phase: reconciler.Unauthenticated.String()})
	}

	_, u, err := auth.Authenticate(c.Context(), s.deps, token)
	if err != nil {
		v := View{Phase: reconciler.Unauthenticated.String()}

		var d *auth.Denial
		if errors.As(err, &d) && d.Message != auth.MsgSignInRequired {
			v.Message = d.Message
		}

		return c.JSON(v)
	}

	return c.JSON(View{Phase: reconciler.Authenticated.String(), Authenticated: true, User: userView(u)})
}

func userView(u reconciler.CurrentUser) *User {
	return &User{
		ID:        u.UserID,
		Email:     u.Email,
		Name:      u.Name,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		GroupName: u.GroupName,
		Status:    string(u.Status),
	}
}

func (s *Service) reconciled() View {
	st := s.deps.Session.State()

	v := View{
		Phase:         st.Phase.String(),
		Authenticated: st.Authenticated,
		Reason:        string(st.Reason),
		Message:       st.Message,
		Seq:           st.Seq,
	}

	if st.User != nil {
		v.User = userView(*st.User)
	}

	if o := s.last.Load(); o != nil && o.State.Seq == st.Seq {
		for _, r := range o.Navigate {
			v.Navigate = append(v.Navigate, string(r))
		}
	}

	return v
}

// Groups returns the group directory, loading it on first use.
func (s *Service) Groups(c fiber.Ctx) error {
	groups := s.deps.Groups.Get()

	if s.deps.Groups.State() != directory.Loaded {
		groups = s.deps.Groups.Reload(c.Context())
	}

	return c.JSON(fiber.Map{"groups": groups})
}

// Location records the client's screen. While a user is signed in only the
// holder of that session may move it.
func (s *Service) Location(c fiber.Ctx) error {
	if s.deps.Session.State().Authenticated && !s.deps.Session.Holds(handler.AccessToken(c)) {
		return c.Status(fiber.StatusUnauthorized).JSON(actions.Result{Message: auth.MsgSignInRequired})
	}

	var req LocationRequest
	if err := c.Bind().Body(&req); err != nil {
		return handler.BadRequest(c)
	}

	route := reconciler.Route(req.Route)

	switch route {
	case reconciler.RouteHome, reconciler.RouteLogin, reconciler.RouteRegister,
		reconciler.RouteForgotPassword, reconciler.RouteResetPassword:
	default:
		// any other screen needs a session
		route = reconciler.RouteHome
	}

	s.deps.Session.SetLocation(route)

	return c.SendStatus(fiber.StatusNoContent)
}
