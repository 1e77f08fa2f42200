// Package actions holds the operations the HTTP surface exposes: sign-in,
// registration, password flows, profile edits and account administration.
// Every operation returns a Result and never an error, failures are logged
// here and reported as a user facing message.
package actions

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/fault"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/profile"
	"github.com/memberportal/memberportal/internal/reconciler"
)

// DefaultTimeout bounds every remote call of an action.
const DefaultTimeout = 20 * time.Second

// Messages shared by several actions.
const (
	MsgConnection     = "Connection failed or took too long. Please try again."
	MsgUnexpected     = "Something went wrong. Please try again."
	MsgProfileMissing = "Profile not found."
)

// ErrMissingDependency is returned by New when a dependency is nil.
var ErrMissingDependency = errors.New("actions: missing dependency")

// Resolver fetches the record that authorizes a session.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*profile.Record, error)
}

// Store is the account record store.
type Store interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	Create(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, id string, apply func(p *models.Profile)) (*models.Profile, error)
	SetStatus(ctx context.Context, id string, status models.Status) error
	DeleteWithStatus(ctx context.Context, id string, status models.Status) error
}

// Session is the current session as the reconciler sees it.
type Session interface {
	CurrentUser() (reconciler.CurrentUser, bool)
	ApplyProfile(rec profile.Record)
	Revalidate()
}

// Directory is reloaded after changes that may alter the group list.
type Directory interface {
	Reload(ctx context.Context) []string
}

// Recoverer is implemented by providers that redeem reset tokens themselves.
type Recoverer interface {
	VerifyRecovery(ctx context.Context, token string) (*identity.Session, error)
}

// SessionEnder is implemented by providers that can revoke one session by
// its access token.
type SessionEnder interface {
	EndSession(ctx context.Context, token string) error
}

// UserRemover is implemented by providers that can delete an identity.
type UserRemover interface {
	DeleteUser(ctx context.Context, userID string) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Provider  identity.Provider
	Resolver  Resolver
	Store     Store
	Session   Session
	Directory Directory
}

// Config holds the Service settings.
type Config struct {
	// BaseURL is the public portal url, reset links point below it.
	BaseURL string
	Timeout time.Duration
}

// Service implements the actions.
type Service struct {
	provider  identity.Provider
	resolver  Resolver
	store     Store
	session   Session
	directory Directory
	cfg       Config
	validate  *validator.Validate
}

// New creates a Service.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Provider == nil || deps.Resolver == nil || deps.Store == nil || deps.Session == nil || deps.Directory == nil {
		return nil, ErrMissingDependency
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Service{
		provider:  deps.Provider,
		resolver:  deps.Resolver,
		store:     deps.Store,
		session:   deps.Session,
		directory: deps.Directory,
		cfg:       cfg,
		validate:  newValidator(),
	}, nil
}

// Result is the outcome every action reports.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok(msg string) Result {
	return Result{Success: true, Message: msg}
}

func failed(msg string) Result {
	return Result{Message: msg}
}

// failure logs err and maps it onto a user message.
func failure(op string, err error) Result {
	kind := fault.KindOf(err)

	log.Error().Err(err).Str("op", op).Str("kind", kind.String()).Msg("action failed")

	switch kind {
	case fault.Timeout, fault.Upstream:
		return failed(MsgConnection)
	case fault.NotFound:
		return failed(MsgProfileMissing)
	default:
		return failed(MsgUnexpected)
	}
}
