// Package local implements the identity provider on the portal's own database.
// Credentials live in gorm, sessions and reset tokens in a key/value Storage
// so a restart picks them up again. Every session is stored under its access
// token; the most recently opened one is the current session reported on the
// event stream.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/fault"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/uniuri"
)

const (
	sessionKeyPrefix = "identity:session:"
	currentKey       = "identity:current"
	resetKeyPrefix = "identity:reset:"

	defaultSessionTTL    = 24 * time.Hour
	defaultResetTokenTTL = time.Hour
)

// Provisioner is called after a credential was created by SignUp. An error
// undoes the sign-up.
type Provisioner func(ctx context.Context, userID, email string, metadata map[string]string) error

// Config holds the provider settings.
type Config struct {
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
}

// Provider is the built-in identity provider.
type Provider struct {
	db        *gorm.DB
	store     Storage
	cfg       Config
	mailer    Mailer
	provision Provisioner
	oidc      *OIDC
	now       func() time.Time

	mu      sync.Mutex
	subs    map[uint64]func(identity.Event)
	nextSub uint64
}

var _ identity.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(p *Provider)

// WithMailer replaces the LogMailer.
func WithMailer(m Mailer) Option {
	return func(p *Provider) { p.mailer = m }
}

// WithProvisioner sets the sign-up hook.
func WithProvisioner(fn Provisioner) Option {
	return func(p *Provider) { p.provision = fn }
}

// WithOIDC enables the OIDC code flow.
func WithOIDC(o *OIDC) Option {
	return func(p *Provider) { p.oidc = o }
}

// New creates a Provider. A nil store falls back to a MemoryStorage.
func New(db *gorm.DB, store Storage, cfg Config, opts ...Option) (*Provider, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if store == nil {
		store = NewMemoryStorage()
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = defaultResetTokenTTL
	}

	p := &Provider{
		db:     db,
		store:  store,
		cfg:    cfg,
		mailer: LogMailer{},
		now:    time.Now,
		subs:   make(map[uint64]func(identity.Event)),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", fault.ErrUpstream, op, err)
}

// SignIn implements identity.Provider.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	var cred models.Credential

	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.ErrInvalidCredentials
	}

	if err != nil {
		return nil, upstream("sign in", err)
	}

	if !cred.VerifyPassword(password) {
		return nil, identity.ErrInvalidCredentials
	}

	return p.open(&cred, identity.SignedIn)
}

// open starts a session for cred, persists it and notifies subscribers with kind.
func (p *Provider) open(cred *models.Credential, kind identity.EventKind) (*identity.Session, error) {
	token, err := uniuri.Token()
	if err != nil {
		return nil, upstream("create access token", err)
	}

	s := &identity.Session{
		UserID:      cred.UserID,
		Email:       cred.Email,
		AccessToken: token,
		ExpiresAt:   p.now().Add(p.cfg.SessionTTL),
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, upstream("encode session", err)
	}

	if err = p.store.Set(sessionKeyPrefix+token, raw, p.cfg.SessionTTL); err != nil {
		return nil, upstream("store session", err)
	}

	if err = p.store.Set(currentKey, []byte(token), p.cfg.SessionTTL); err != nil {
		return nil, upstream("store current session", err)
	}

	log.Debug().Str("user", s.UserID).Str("event", string(kind)).Msg("session opened")
	p.emit(identity.Event{Kind: kind, Session: s})

	return s, nil
}

// Current returns the current session, nil when nobody is signed in.
func (p *Provider) Current() (*identity.Session, error) {
	token, err := p.currentToken()
	if err != nil {
		return nil, err
	}

	return p.Lookup(context.Background(), token)
}

func (p *Provider) currentToken() (string, error) {
	raw, err := p.store.Get(currentKey)
	if err != nil {
		return "", upstream("load current session", err)
	}

	return string(raw), nil
}

// Lookup returns the live session issued with token, nil when the token is
// unknown, signed out or expired.
func (p *Provider) Lookup(_ context.Context, token string) (*identity.Session, error) {
	if token == "" {
		return nil, nil //nolint:nilnil
	}

	raw, err := p.store.Get(sessionKeyPrefix + token)
	if err != nil {
		return nil, upstream("load session", err)
	}

	if len(raw) == 0 {
		return nil, nil //nolint:nilnil
	}

	var s identity.Session
	if err = json.Unmarshal(raw, &s); err != nil {
		return nil, upstream("decode session", err)
	}

	if s.Expired(p.now()) || s.AccessToken != token {
		return nil, nil //nolint:nilnil
	}

	return &s, nil
}

// SignUp implements identity.Provider. The new account is not signed in.
func (p *Provider) SignUp(ctx context.Context, req identity.SignUpRequest) (string, error) {
	email := normalizeEmail(req.Email)
	db := p.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Credential{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return "", upstream("check existing credential", err)
	}

	if count > 0 {
		return "", identity.ErrEmailTaken
	}

	hash, err := models.HashPassword(req.Password)
	if err != nil {
		return "", upstream("hash password", err)
	}

	cred := models.Credential{
		UserID:       uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     req.Metadata,
	}

	if err = db.Create(&cred).Error; err != nil {
		return "", upstream("create credential", err)
	}

	if p.provision != nil {
		if err = p.provision(ctx, cred.UserID, cred.Email, req.Metadata); err != nil {
			if delErr := db.Delete(&models.Credential{}, "user_id = ?", cred.UserID).Error; delErr != nil {
				log.Error().Err(delErr).Str("user", cred.UserID).Msg("failed to undo sign-up")
			}

			return "", err
		}
	}

	return cred.UserID, nil
}

// SignOut implements identity.Provider. It ends the current session.
// Subscribers are notified even when no session was open.
func (p *Provider) SignOut(_ context.Context) error {
	token, err := p.currentToken()
	if err != nil {
		return err
	}

	if err = p.end(token); err != nil {
		return err
	}

	if err = p.store.Delete(currentKey); err != nil {
		return upstream("delete current session", err)
	}

	p.emit(identity.Event{Kind: identity.SignedOut})

	return nil
}

// EndSession revokes the session issued with token. Subscribers are only
// notified when it was the current session.
func (p *Provider) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	current, err := p.currentToken()
	if err != nil {
		return err
	}

	if current == token {
		return p.SignOut(ctx)
	}

	return p.end(token)
}

func (p *Provider) end(token string) error {
	if token == "" {
		return nil
	}

	if err := p.store.Delete(sessionKeyPrefix + token); err != nil {
		return upstream("delete session", err)
	}

	return nil
}

// DeleteUser removes the credential of userID. Deleting an unknown user is
// not an error.
func (p *Provider) DeleteUser(ctx context.Context, userID string) error {
	if err := p.db.WithContext(ctx).Delete(&models.Credential{}, "user_id = ?", userID).Error; err != nil {
		return upstream("delete credential", err)
	}

	return nil
}

// UpdatePassword implements identity.Provider. It acts for the session in
// ctx (see identity.NewContext), or the current session when ctx has none.
func (p *Provider) UpdatePassword(ctx context.Context, password string) error {
	s, err := p.acting(ctx)
	if err != nil {
		return err
	}

	if s == nil {
		return identity.ErrNoSession
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return upstream("hash password", err)
	}

	result := p.db.WithContext(ctx).Model(&models.Credential{}).
		Where("user_id = ?", s.UserID).
		Updates(map[string]any{"password_hash": hash, "updated_at": p.now()})
	if result.Error != nil {
		return upstream("update password", result.Error)
	}

	if result.RowsAffected == 0 {
		return identity.ErrNoSession
	}

	if current, _ := p.currentToken(); current == s.AccessToken {
		p.emit(identity.Event{Kind: identity.UserUpdated, Session: s})
	}

	return nil
}

// acting returns the live session a call acts for.
func (p *Provider) acting(ctx context.Context) (*identity.Session, error) {
	if s := identity.FromContext(ctx); s != nil {
		return p.Lookup(ctx, s.AccessToken)
	}

	return p.Current()
}

// RequestPasswordReset implements identity.Provider. Unknown emails succeed
// silently so the call can not be used to enumerate accounts.
func (p *Provider) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	var cred models.Credential

	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug().Str("email", email).Msg("password reset for unknown email ignored")
		return nil
	}

	if err != nil {
		return upstream("find credential", err)
	}

	token, err := uniuri.Token()
	if err != nil {
		return upstream("create reset token", err)
	}

	if err = p.store.Set(resetKeyPrefix+token, []byte(cred.UserID), p.cfg.ResetTokenTTL); err != nil {
		return upstream("store reset token", err)
	}

	link := redirectTo + "?token=" + url.QueryEscape(token)

	return p.mailer.SendPasswordReset(ctx, cred.Email, link) //nolint:wrapcheck
}

// VerifyRecovery redeems a reset token. The user is signed in and subscribers
// receive password-recovery-started so the UI can ask for the new password.
func (p *Provider) VerifyRecovery(ctx context.Context, token string) (*identity.Session, error) {
	if token == "" {
		return nil, identity.ErrInvalidResetToken
	}

	key := resetKeyPrefix + token

	userID, err := p.store.Get(key)
	if err != nil {
		return nil, upstream("load reset token", err)
	}

	if len(userID) == 0 {
		return nil, identity.ErrInvalidResetToken
	}

	if err = p.store.Delete(key); err != nil {
		return nil, upstream("delete reset token", err)
	}

	var cred models.Credential

	err = p.db.WithContext(ctx).Where("user_id = ?", string(userID)).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.ErrInvalidResetToken
	}

	if err != nil {
		return nil, upstream("find credential", err)
	}

	return p.open(&cred, identity.PasswordRecoveryStarted)
}

// Subscribe implements identity.Provider. fn is called once right away with
// initial-session carrying the stored session, or none.
func (p *Provider) Subscribe(fn func(identity.Event)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	s, err := p.Current()
	if err != nil {
		log.Error().Err(err).Msg("failed to load stored session")
	}

	fn(identity.Event{Kind: identity.InitialSession, Session: s})

	var once sync.Once

	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) emit(e identity.Event) {
	p.mu.Lock()
	fns := make([]func(identity.Event), 0, len(p.subs))

	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
