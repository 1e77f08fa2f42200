package actions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/fault"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/reconciler"
	"github.com/memberportal/memberportal/internal/timeout"
)

// Messages of the sign-in and registration flows.
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgRegistered         = "Registration submitted. An administrator will review your request."
	MsgRegistrationQueued = "A registration request for this email is already awaiting approval."
	MsgAccountExists      = "An account with this email already exists."
	MsgGroupRequired      = "Please choose a group."
	MsgResetSent          = "If an account exists for this email, a reset link has been sent."
	MsgPasswordUpdated    = "Your password has been updated."
	MsgSessionExpired     = "Your session has expired. Please sign in again."
	MsgInvalidResetToken  = "This reset link is invalid or has expired."
	MsgRecoveryStarted    = "Please choose a new password."
	MsgNotSupported       = "This operation is not available."
)

// LoginResult is the outcome of a sign-in. AccessToken authenticates the
// requests that follow.
type LoginResult struct {
	Result
	UserID      string     `json:"userId,omitempty"`
	AccessToken string     `json:"accessToken,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Profile     *Profile   `json:"profile,omitempty"`
}

// RegisterResult is the outcome of a registration.
type RegisterResult struct {
	Result
	UserID string `json:"userId,omitempty"`
}

// Login signs in and checks the account status right away so a blocked
// user gets the reason instead of a bare success.
func (s *Service) Login(ctx context.Context, req LoginRequest) LoginResult {
	if err := s.validate.Struct(req); err != nil {
		return LoginResult{Result: invalid(err)}
	}

	sess, err := timeout.Call(ctx, s.cfg.Timeout, "sign in", func(ctx context.Context) (*identity.Session, error) {
		return s.provider.SignIn(ctx, req.Email, req.Password)
	})
	if errors.Is(err, identity.ErrInvalidCredentials) {
		log.Info().Str("email", req.Email).Msg("sign-in rejected")
		return LoginResult{Result: failed(MsgInvalidCredentials)}
	}

	if err != nil {
		return LoginResult{Result: failure("sign in", err)}
	}

	return s.Admit(ctx, sess)
}

// Admit checks the account behind a fresh session. Sessions without an
// active account are signed out again.
func (s *Service) Admit(ctx context.Context, sess *identity.Session) LoginResult {
	if sess == nil {
		return LoginResult{Result: failed(MsgSessionExpired)}
	}

	rec, err := s.resolver.Resolve(ctx, sess.UserID)

	reason := reconciler.ReasonNone

	switch {
	case rec == nil && errors.Is(err, fault.ErrTimeout):
		reason = reconciler.ReasonTimeout
	case rec == nil && errors.Is(err, fault.ErrUnexpected):
		reason = reconciler.ReasonAuthError
	case rec == nil:
		reason = reconciler.ReasonProfileNotFound
	case rec.Status != models.StatusActive:
		reason = reconciler.StatusReason(rec.Status)
	}

	if reason != reconciler.ReasonNone {
		s.endSession(ctx, sess.AccessToken)

		log.Info().Str("user", sess.UserID).Str("reason", string(reason)).Msg("sign-in refused")

		return LoginResult{Result: failed(reason.Message())}
	}

	res := LoginResult{
		Result:      ok(""),
		UserID:      sess.UserID,
		AccessToken: sess.AccessToken,
		Profile:     profileFromRecord(rec),
	}

	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt
		res.ExpiresAt = &exp
	}

	return res
}

func (s *Service) endSession(ctx context.Context, token string) {
	if err := s.revoke(ctx, token); err != nil {
		log.Error().Err(err).Msg("sign-out failed")
	}
}

// revoke ends the session of token, or the provider's current session when
// the provider can not revoke single sessions.
func (s *Service) revoke(ctx context.Context, token string) error {
	ender, canEnd := s.provider.(SessionEnder)
	if !canEnd {
		return timeout.Do(ctx, s.cfg.Timeout, "sign out", s.provider.SignOut)
	}

	return timeout.Do(ctx, s.cfg.Timeout, "end session", func(ctx context.Context) error {
		return ender.EndSession(ctx, token)
	})
}

// Logout ends the session issued with token. The reconciler clears the
// current user when the provider reports signed-out.
func (s *Service) Logout(ctx context.Context, token string) Result {
	if err := s.revoke(ctx, token); err != nil {
		return failure("sign out", err)
	}

	return ok("")
}

// Register creates a pending account. An administrator approves it later.
func (s *Service) Register(ctx context.Context, req RegisterRequest) RegisterResult {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.validate.Struct(req); err != nil {
		return RegisterResult{Result: invalid(err)}
	}

	if req.Role == models.RoleMember && strings.TrimSpace(req.GroupLabel) == models.AllGroups {
		return RegisterResult{Result: failed(MsgGroupRequired)}
	}

	existing, err := timeout.Call(ctx, s.cfg.Timeout, "find profile by email", func(ctx context.Context) (*models.Profile, error) {
		return s.store.FindByEmail(ctx, req.Email)
	})

	switch {
	case err == nil && existing.Status == models.StatusPending:
		return RegisterResult{Result: failed(MsgRegistrationQueued)}
	case err == nil:
		return RegisterResult{Result: failed(MsgAccountExists)}
	case fault.KindOf(err) != fault.NotFound:
		return RegisterResult{Result: failure("find profile by email", err)}
	}

	id, err := timeout.Call(ctx, s.cfg.Timeout, "sign up", func(ctx context.Context) (string, error) {
		return s.provider.SignUp(ctx, identity.SignUpRequest{
			Email:    req.Email,
			Password: req.Password,
			Metadata: req.metadata(),
		})
	})
	if errors.Is(err, identity.ErrEmailTaken) {
		return RegisterResult{Result: failed(MsgAccountExists)}
	}

	if err != nil {
		return RegisterResult{Result: failure("sign up", err)}
	}

	log.Info().Str("user", id).Str("role", string(req.Role)).Msg("registration submitted")

	s.directory.Reload(ctx)

	return RegisterResult{Result: ok(MsgRegistered), UserID: id}
}

// metadata is handed to the provider and read back by the provisioner.
func (r RegisterRequest) metadata() map[string]string {
	m := map[string]string{
		metaFirstName: strings.TrimSpace(r.FirstName),
		metaLastName:  strings.TrimSpace(r.LastName),
		metaPhone:     strings.TrimSpace(r.Phone),
		metaRole:      string(r.Role),
	}

	if r.Role == models.RoleMember {
		m[metaGroup] = strings.TrimSpace(r.GroupLabel)
		m[metaChildFirstName] = strings.TrimSpace(r.ChildFirstName)
		m[metaChildLastName] = strings.TrimSpace(r.ChildLastName)
	}

	return m
}

// RequestPasswordReset mails a reset link. The answer is the same whether
// or not the email is known.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)

	if err := s.validate.Var(email, "required,email"); err != nil {
		return failed("Please enter a valid email address.")
	}

	redirect := strings.TrimRight(s.cfg.BaseURL, "/") + string(reconciler.RouteResetPassword)

	err := timeout.Do(ctx, s.cfg.Timeout, "request password reset", func(ctx context.Context) error {
		return s.provider.RequestPasswordReset(ctx, email, redirect)
	})
	if err != nil {
		return failure("request password reset", err)
	}

	return ok(MsgResetSent)
}

// UpdatePassword changes the password of the signed-in user.
func (s *Service) UpdatePassword(ctx context.Context, req PasswordRequest) Result {
	if err := s.validate.Struct(req); err != nil {
		return invalid(err)
	}

	err := timeout.Do(ctx, s.cfg.Timeout, "update password", func(ctx context.Context) error {
		return s.provider.UpdatePassword(ctx, req.Password)
	})
	if errors.Is(err, identity.ErrNoSession) {
		return failed(MsgSessionExpired)
	}

	if err != nil {
		return failure("update password", err)
	}

	return ok(MsgPasswordUpdated)
}

// RecoverSession redeems a reset token. The provider signs the user in and
// reports password-recovery-started, which sends the UI to the reset form.
// The result carries the new session's access token.
func (s *Service) RecoverSession(ctx context.Context, token string) LoginResult {
	r, isRecoverer := s.provider.(Recoverer)
	if !isRecoverer {
		return LoginResult{Result: failed(MsgNotSupported)}
	}

	sess, err := timeout.Call(ctx, s.cfg.Timeout, "verify recovery", func(ctx context.Context) (*identity.Session, error) {
		return r.VerifyRecovery(ctx, strings.TrimSpace(token))
	})
	if errors.Is(err, identity.ErrInvalidResetToken) {
		return LoginResult{Result: failed(MsgInvalidResetToken)}
	}

	if err != nil {
		return LoginResult{Result: failure("verify recovery", err)}
	}

	res := LoginResult{Result: ok(MsgRecoveryStarted), UserID: sess.UserID, AccessToken: sess.AccessToken}

	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt
		res.ExpiresAt = &exp
	}

	return res
}
