package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/directory"
	"github.com/memberportal/memberportal/internal/fault"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/profile"
	"github.com/memberportal/memberportal/internal/timeout"
)

// decision is what a job resolved to before side effects are applied.
type decision struct {
	kind    identity.EventKind
	session *identity.Session
	user    *CurrentUser
	reason  Reason
	signOut bool
	skip    bool
}

func (r *Reconciler) process(ctx context.Context, j job) {
	start := time.Now()

	kind := j.event.Kind
	if j.record != nil {
		kind = identity.UserUpdated
	}

	prev := r.state.Load()
	loading := *prev
	loading.Phase = Loading
	r.state.Store(&loading)

	d := r.decide(ctx, j)
	d.kind = kind

	if ctx.Err() != nil {
		// shutting down, a failed fetch says nothing about the account
		r.state.Store(prev)
		return
	}

	if d.skip {
		r.state.Store(prev)
		return
	}

	o := r.settle(ctx, d)

	reconcileSeconds.Observe(time.Since(start).Seconds())
	reconciliations.WithLabelValues(string(kind), result(o.State)).Inc()

	var published bool
	if o.State, published = r.publish(o.State); !published {
		return
	}

	log.Debug().
		Str("event", string(kind)).
		Str("phase", o.State.Phase.String()).
		Str("reason", string(o.State.Reason)).
		Uint64("seq", o.State.Seq).
		Msg("session reconciled")

	r.emit(o)
}

func result(s State) string {
	if s.Authenticated {
		return "authenticated"
	}

	if s.Reason != ReasonNone {
		return string(s.Reason)
	}

	return "unauthenticated"
}

// decide looks at the job without side effects on the provider. A panic
// while resolving turns into auth-error.
func (r *Reconciler) decide(ctx context.Context, j job) (d decision) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("panic", fmt.Sprint(rec)).Msg("session reconciliation panicked")

			d = decision{session: d.session, reason: ReasonAuthError, signOut: d.session != nil}
		}
	}()

	if j.record != nil {
		return r.decideRecord(*j.record)
	}

	s := j.event.Session
	if s == nil || s.Expired(time.Now()) {
		return decision{}
	}

	d.session = s

	rec, err := r.resolver.Resolve(ctx, s.UserID)
	if rec == nil {
		switch {
		case errors.Is(err, fault.ErrTimeout):
			d.reason = ReasonTimeout
		case errors.Is(err, fault.ErrUnexpected):
			d.reason = ReasonAuthError
		default:
			d.reason = ReasonProfileNotFound
		}

		d.signOut = true

		log.Warn().Err(err).Str("user", s.UserID).Str("reason", string(d.reason)).Msg("no usable profile for session")

		return d
	}

	return r.judge(d, *rec)
}

// decideRecord handles a record applied by ApplyProfile.
func (r *Reconciler) decideRecord(rec profile.Record) decision {
	cur := r.state.Load().User
	s := r.session.Load()

	if cur == nil || s == nil || cur.UserID != rec.ID {
		return decision{skip: true}
	}

	return r.judge(decision{session: s}, rec)
}

// judge checks the status of a fetched record.
func (r *Reconciler) judge(d decision, rec profile.Record) decision {
	if rec.Status != models.StatusActive {
		d.reason = StatusReason(rec.Status)
		d.signOut = true

		log.Info().Str("user", rec.ID).Str("status", string(rec.Status)).Msg("session blocked by account status")

		return d
	}

	u := NewCurrentUser(*d.session, rec)
	d.user = &u

	return d
}

// settle applies the side effects of d and builds the outcome.
func (r *Reconciler) settle(ctx context.Context, d decision) Outcome {
	o := Outcome{Event: d.kind}

	// A recovery link always lands on the reset screen. When the account is
	// refused, the login navigation that follows wins.
	if d.kind == identity.PasswordRecoveryStarted {
		o.Navigate = append(o.Navigate, RouteResetPassword)
	}

	if d.user != nil {
		r.session.Store(d.session)

		if r.directory.State() != directory.Loaded {
			r.directory.Reload(ctx)
		}

		o.State = State{Phase: Authenticated, Authenticated: true, User: d.user}

		if (d.kind == identity.SignedIn || d.kind == identity.InitialSession) && r.Location().unauthenticatedOnly() {
			o.Navigate = append(o.Navigate, RouteHome)
		}

		return o
	}

	r.session.Store(nil)
	r.directory.Invalidate()

	o.State = State{Phase: Unauthenticated, Reason: d.reason, Message: d.reason.Message()}

	if d.signOut {
		o.SignedOut = r.forceSignOut(ctx)
		o.Navigate = append(o.Navigate, RouteLogin)

		return o
	}

	if d.kind == identity.SignedOut {
		o.Navigate = append(o.Navigate, RouteLogin)
	}

	return o
}

// forceSignOut ends the provider session. A failure is logged, the local
// state is cleared either way.
func (r *Reconciler) forceSignOut(ctx context.Context) bool {
	r.signingOut.Store(true)
	defer r.signingOut.Store(false)

	err := timeout.Do(ctx, r.signOutTimeout, "sign out", r.provider.SignOut)
	if err != nil {
		log.Error().Err(err).Msg("forced sign-out failed")
		return false
	}

	return true
}
