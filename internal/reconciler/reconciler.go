// Package reconciler turns identity provider events into the portal's
// current user. Every event is checked against the profile store: only an
// active profile yields an authenticated state, anything else forces a
// sign-out on the provider. Events are processed one at a time by a single
// worker so a slow profile fetch can never overwrite a newer result.
package reconciler

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memberportal/memberportal/internal/directory"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/profile"
)

const (
	defaultQueueSize      = 32
	defaultOutcomeBuffer  = 16
	defaultSignOutTimeout = 10 * time.Second
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("reconciler already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("reconciler stopped")
)

// Provider is the part of identity.Provider the reconciler needs.
type Provider interface {
	SignOut(ctx context.Context) error
	Subscribe(fn func(identity.Event)) func()
}

// Resolver fetches the profile record of a user.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*profile.Record, error)
}

// Directory is the group cache kept in step with the session.
type Directory interface {
	Reload(ctx context.Context) []string
	Invalidate()
	State() directory.LoadState
}

// job is one queued unit of work: either a provider event or a profile
// record applied by the portal itself.
type job struct {
	event  identity.Event
	record *profile.Record
}

// Reconciler owns the current user. Create it with New, then Start it.
type Reconciler struct {
	provider       Provider
	resolver       Resolver
	directory      Directory
	signOutTimeout time.Duration

	jobs     chan job
	outcomes chan Outcome
	stopped  chan struct{}
	done     chan struct{}

	state      atomic.Pointer[State]
	session    atomic.Pointer[identity.Session]
	location   atomic.Pointer[Route]
	alive      atomic.Bool
	signingOut atomic.Bool

	// seq is only touched by the worker.
	seq uint64

	mu          sync.Mutex
	started     bool
	unsubscribe func()
	cancel      context.CancelFunc
}

// Option configures a Reconciler.
type Option func(r *Reconciler)

// WithQueueSize bounds the number of events waiting for the worker.
func WithQueueSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.jobs = make(chan job, n)
		}
	}
}

// WithOutcomeBuffer sets the capacity of the Outcomes channel.
func WithOutcomeBuffer(n int) Option {
	return func(r *Reconciler) {
		if n >= 0 {
			r.outcomes = make(chan Outcome, n)
		}
	}
}

// WithSignOutTimeout limits a forced sign-out.
func WithSignOutTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.signOutTimeout = d }
}

// New creates a stopped Reconciler in phase Unknown.
func New(provider Provider, resolver Resolver, dir Directory, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider:       provider,
		resolver:       resolver,
		directory:      dir,
		signOutTimeout: defaultSignOutTimeout,
		jobs:           make(chan job, defaultQueueSize),
		outcomes:       make(chan Outcome, defaultOutcomeBuffer),
		stopped:        make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.state.Store(&State{Phase: Unknown})

	home := RouteHome
	r.location.Store(&home)

	return r
}

// Start runs the worker and subscribes to the provider. The provider's
// initial-session event is the first one reconciled.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.stopped:
		return ErrStopped
	default:
	}

	if r.started {
		return ErrAlreadyStarted
	}

	r.started = true

	wctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.alive.Store(true)

	go r.run(wctx)

	r.unsubscribe = r.provider.Subscribe(r.onEvent)

	log.Debug().Msg("session reconciler started")

	return nil
}

// Stop unsubscribes, abandons queued work and waits for the worker. Results
// of an event in flight are discarded.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.stopped:
		return
	default:
	}

	r.alive.Store(false)
	close(r.stopped)

	if !r.started {
		return
	}

	r.unsubscribe()
	r.cancel()
	<-r.done

	log.Debug().Msg("session reconciler stopped")
}

// State returns the last published state.
func (r *Reconciler) State() State {
	return *r.state.Load()
}

// CurrentUser returns the authenticated user, if any.
func (r *Reconciler) CurrentUser() (CurrentUser, bool) {
	s := r.state.Load()
	if !s.Authenticated || s.User == nil {
		return CurrentUser{}, false
	}

	return *s.User, true
}

// Holds reports whether token belongs to the reconciled session of the
// authenticated user.
func (r *Reconciler) Holds(token string) bool {
	if token == "" || !r.state.Load().Authenticated {
		return false
	}

	s := r.session.Load()
	if s == nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(s.AccessToken), []byte(token)) == 1
}

// Outcomes delivers one Outcome per reconciled event. Outcomes nobody
// receives are dropped once the buffer is full.
func (r *Reconciler) Outcomes() <-chan Outcome {
	return r.outcomes
}

// SetLocation records the screen the user is on. It decides whether a
// sign-in navigates home.
func (r *Reconciler) SetLocation(route Route) {
	r.location.Store(&route)
}

// Location returns the last recorded screen.
func (r *Reconciler) Location() Route {
	return *r.location.Load()
}

// ApplyProfile feeds an edited record of the current user through the
// worker, so a self edit that changes the status is handled like any
// other transition. Records of other users are ignored.
func (r *Reconciler) ApplyProfile(rec profile.Record) {
	r.enqueue(job{record: &rec})
}

// Revalidate fetches the profile of the current session again.
func (r *Reconciler) Revalidate() {
	r.enqueue(job{event: identity.Event{Kind: identity.UserUpdated, Session: r.session.Load()}})
}

func (r *Reconciler) onEvent(e identity.Event) {
	// the echo of a sign-out the worker forced itself
	if e.Kind == identity.SignedOut && r.signingOut.Load() {
		return
	}

	r.enqueue(job{event: e})
}

// enqueue blocks while the queue is full. Only the worker can make room,
// and the worker never enqueues, so this can not deadlock.
func (r *Reconciler) enqueue(j job) bool {
	if !r.alive.Load() {
		return false
	}

	select {
	case r.jobs <- j:
		return true
	case <-r.stopped:
		return false
	}
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.jobs:
			if !r.alive.Load() {
				return
			}

			r.process(ctx, j)
		}
	}
}

// publish stores s as the current state unless the reconciler was stopped.
func (r *Reconciler) publish(s State) (State, bool) {
	if !r.alive.Load() {
		return s, false
	}

	r.seq++
	s.Seq = r.seq
	r.state.Store(&s)

	return s, true
}

func (r *Reconciler) emit(o Outcome) {
	select {
	case r.outcomes <- o:
	default:
		droppedOutcomes.Inc()
		log.Warn().Str("event", string(o.Event)).Uint64("seq", o.State.Seq).Msg("session outcome dropped")
	}
}
