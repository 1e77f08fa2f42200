package reconciler

import (
	"strings"
	"time"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/profile"
)

// Phase is the reconciler state.
type Phase int

const (
	// Unknown is the state before the first event.
	Unknown Phase = iota
	// Loading while an event is reconciled.
	Loading
	// Authenticated with an active account.
	Authenticated
	// Unauthenticated after sign-out or any unusable session.
	Unauthenticated
	// Blocked marks a session whose account is pending or inactive. It is never
	// published, it always ends in Unauthenticated plus a forced sign-out.
	Blocked
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Reason explains why a session ended up unauthenticated.
type Reason string

// Reasons with a dedicated user message.
const (
	ReasonNone            Reason = ""
	ReasonPending         Reason = "pending"
	ReasonInactive        Reason = "inactive"
	ReasonProfileNotFound Reason = "profile-not-found"
	ReasonTimeout         Reason = "timeout"
	ReasonAuthError       Reason = "auth-error"
)

// Message returns the user facing text for r.
func (r Reason) Message() string {
	switch r {
	case ReasonPending:
		return "Your account is awaiting approval by an administrator."
	case ReasonInactive:
		return "Your account has been deactivated. Please contact an administrator."
	case ReasonProfileNotFound:
		return "Your profile could not be found. Please contact an administrator."
	case ReasonTimeout:
		return "Loading your profile took too long. Please try again."
	case ReasonAuthError:
		return "An authentication error occurred. Please sign in again."
	default:
		return ""
	}
}

// StatusReason maps a non-active account status to its Reason.
func StatusReason(s models.Status) Reason {
	switch s {
	case models.StatusPending:
		return ReasonPending
	case models.StatusInactive:
		return ReasonInactive
	default:
		return ReasonAuthError
	}
}

// Route is a navigation target for the presentation layer.
type Route string

// Routes the reconciler asks for.
const (
	RouteHome           Route = "/"
	RouteLogin          Route = "/login"
	RouteRegister       Route = "/register"
	RouteForgotPassword Route = "/forgot-password"
	RouteResetPassword  Route = "/reset-password"
)

// unauthenticatedOnly are the screens a signed-in user is sent away from.
func (r Route) unauthenticatedOnly() bool {
	switch r {
	case RouteLogin, RouteRegister, RouteForgotPassword, RouteResetPassword:
		return true
	default:
		return false
	}
}

// CurrentUser is the signed-in user as seen by the rest of the portal.
// Values are built by NewCurrentUser and never changed afterwards.
type CurrentUser struct {
	UserID           string
	Email            string
	FirstName        string
	LastName         string
	Name             string
	Role             models.Role
	GroupLabel       string
	GroupName        string
	Status           models.Status
	SessionExpiresAt time.Time
}

// NewCurrentUser merges a session with the record fetched for its user id.
func NewCurrentUser(s identity.Session, r profile.Record) CurrentUser {
	u := CurrentUser{
		UserID:           s.UserID,
		Email:            r.Email,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Name:             strings.TrimSpace(r.FirstName + " " + r.LastName),
		Role:             r.Role,
		Status:           r.Status,
		SessionExpiresAt: s.ExpiresAt,
	}

	if u.Email == "" {
		u.Email = s.Email
	}

	if r.GroupLabel != nil {
		u.GroupLabel = *r.GroupLabel
		u.GroupName = u.GroupLabel
	}

	return u
}

// IsAdministrator reports whether the user may manage accounts.
func (u CurrentUser) IsAdministrator() bool {
	return u.Role == models.RoleAdministrator
}

// State is a published reconciliation result. Authenticated implies a
// non-nil User with status active.
type State struct {
	Phase         Phase
	Authenticated bool
	User          *CurrentUser
	Reason        Reason
	Message       string
	Seq           uint64
}

// Outcome is emitted once per reconciled event.
type Outcome struct {
	Event     identity.EventKind
	State     State
	Navigate  []Route
	SignedOut bool // a sign-out was forced on the provider
}
