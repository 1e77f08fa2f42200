package actions

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/profile"
	"github.com/memberportal/memberportal/internal/timeout"
)

// Messages of the account administration flows.
const (
	MsgProfileUpdated = "Profile updated."
	MsgApproved       = "Account approved."
	MsgRejected       = "Registration rejected."
	MsgDeactivated    = "Account deactivated."
	MsgSelfDeactivate = "You cannot deactivate your own account."
	MsgNotPending     = "Only pending registrations can be rejected."
	MsgInvalidGroup   = "\"All\" is not a group."
	MsgUserIDRequired = "A user id is required."
)

// ProfileResult carries an updated profile.
type ProfileResult struct {
	Result
	Profile *Profile `json:"profile,omitempty"`
}

// UsersResult lists every account split by status.
type UsersResult struct {
	Result
	Active   []Profile `json:"active"`
	Pending  []Profile `json:"pending"`
	Inactive []Profile `json:"inactive"`
}

// UpdateProfile applies patch to the account of userID. An edit of the
// signed-in user is fed back into the session so a status change there takes
// effect immediately.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) ProfileResult {
	if userID == "" {
		return ProfileResult{Result: failed(MsgUserIDRequired)}
	}

	if err := s.validate.Struct(patch); err != nil {
		return ProfileResult{Result: invalid(err)}
	}

	if patch.GroupLabel != nil && strings.TrimSpace(*patch.GroupLabel) == models.AllGroups {
		return ProfileResult{Result: failed(MsgInvalidGroup)}
	}

	updated, err := timeout.Call(ctx, s.cfg.Timeout, "update profile", func(ctx context.Context) (*models.Profile, error) {
		return s.store.Update(ctx, userID, patch.apply)
	})
	if err != nil {
		return ProfileResult{Result: failure("update profile", err)}
	}

	if u, signedIn := s.session.CurrentUser(); signedIn && u.UserID == userID {
		s.session.ApplyProfile(*profile.FromModel(updated))
	}

	s.directory.Reload(ctx)

	return ProfileResult{Result: ok(MsgProfileUpdated), Profile: newProfile(updated)}
}

// UpdateAccount is UpdateProfile on behalf of an administrator. Nobody can
// change the status of their own account here, the guard of Deactivate
// applies to patches too.
func (s *Service) UpdateAccount(ctx context.Context, actorID, userID string, patch ProfilePatch) ProfileResult {
	if actorID != "" && actorID == userID && patch.Status != nil && *patch.Status != models.StatusActive {
		log.Warn().Str("user", actorID).Str("status", string(*patch.Status)).Msg("self status change refused")
		return ProfileResult{Result: failed(MsgSelfDeactivate)}
	}

	return s.UpdateProfile(ctx, userID, patch)
}

// ListUsers returns all accounts, newest first within each status.
func (s *Service) ListUsers(ctx context.Context) UsersResult {
	all, err := timeout.Call(ctx, s.cfg.Timeout, "list profiles", s.store.List)
	if err != nil {
		return UsersResult{Result: failure("list profiles", err)}
	}

	res := UsersResult{
		Result:   ok(""),
		Active:   []Profile{},
		Pending:  []Profile{},
		Inactive: []Profile{},
	}

	for i := range all {
		p := *newProfile(&all[i])

		switch all[i].Status {
		case models.StatusActive:
			res.Active = append(res.Active, p)
		case models.StatusPending:
			res.Pending = append(res.Pending, p)
		default:
			res.Inactive = append(res.Inactive, p)
		}
	}

	return res
}

// Approve activates an account.
func (s *Service) Approve(ctx context.Context, userID string) Result {
	if userID == "" {
		return failed(MsgUserIDRequired)
	}

	err := timeout.Do(ctx, s.cfg.Timeout, "approve account", func(ctx context.Context) error {
		return s.store.SetStatus(ctx, userID, models.StatusActive)
	})
	if err != nil {
		return failure("approve account", err)
	}

	log.Info().Str("user", userID).Msg("account approved")

	return ok(MsgApproved)
}

// Reject deletes a registration that is still pending, together with its
// identity so the address can register again.
func (s *Service) Reject(ctx context.Context, userID string) Result {
	if userID == "" {
		return failed(MsgUserIDRequired)
	}

	err := timeout.Do(ctx, s.cfg.Timeout, "reject registration", func(ctx context.Context) error {
		return s.store.DeleteWithStatus(ctx, userID, models.StatusPending)
	})
	if err != nil {
		res := failure("reject registration", err)
		if res.Message == MsgProfileMissing {
			res.Message = MsgNotPending
		}

		return res
	}

	if remover, canRemove := s.provider.(UserRemover); canRemove {
		err = timeout.Do(ctx, s.cfg.Timeout, "delete identity", func(ctx context.Context) error {
			return remover.DeleteUser(ctx, userID)
		})
		if err != nil {
			log.Error().Err(err).Str("user", userID).Msg("rejected registration keeps its identity")
		}
	}

	log.Info().Str("user", userID).Msg("registration rejected")

	s.directory.Reload(ctx)

	return ok(MsgRejected)
}

// Deactivate marks targetID inactive. The record is kept. Deactivating the
// signed-in user ends their session on the next reconciliation.
func (s *Service) Deactivate(ctx context.Context, actorID, targetID string) Result {
	if targetID == "" {
		return failed(MsgUserIDRequired)
	}

	if actorID == targetID {
		return failed(MsgSelfDeactivate)
	}

	err := timeout.Do(ctx, s.cfg.Timeout, "deactivate account", func(ctx context.Context) error {
		return s.store.SetStatus(ctx, targetID, models.StatusInactive)
	})
	if err != nil {
		return failure("deactivate account", err)
	}

	log.Info().Str("user", targetID).Str("by", actorID).Msg("account deactivated")

	if u, signedIn := s.session.CurrentUser(); signedIn && u.UserID == targetID {
		s.session.Revalidate()
	}

	s.directory.Reload(ctx)

	return ok(MsgDeactivated)
}
