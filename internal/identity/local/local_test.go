package local

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/uniuri"
)

var errProvision = errors.New("provisioning failed")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open sqlite in-memory db")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Credential{}))

	return db
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []identity.Event
}

func (r *recorder) record(e identity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) kinds() []identity.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]identity.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}

	return out
}

func (r *recorder) last() identity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.events[len(r.events)-1]
}

// captureMailer keeps the last reset link.
type captureMailer struct {
	email string
	link  string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, link string) error {
	m.email = email
	m.link = link

	return nil
}

func newTestProvider(t *testing.T, opts ...Option) *Provider {
	t.Helper()

	p, err := New(newTestDB(t), NewMemoryStorage(), Config{SessionTTL: time.Hour, ResetTokenTTL: time.Minute}, opts...)
	require.NoError(t, err)

	return p
}

func signUp(t *testing.T, p *Provider, email, password string) string {
	t.Helper()

	id, err := p.SignUp(context.Background(), identity.SignUpRequest{Email: email, Password: password})
	require.NoError(t, err)

	return id
}

func TestNewWithoutDB(t *testing.T) {
	_, err := New(nil, nil, Config{})
	require.ErrorIs(t, err, ErrDBNil)
}

func TestSubscribeEmitsInitialSession(t *testing.T) {
	p := newTestProvider(t)

	var rec recorder
	unsubscribe := p.Subscribe(rec.record)

	require.Equal(t, []identity.EventKind{identity.InitialSession}, rec.kinds())
	assert.Nil(t, rec.last().Session)

	unsubscribe()
	unsubscribe() // second call is a no-op

	signUp(t, p, "ada@example.com", "s3cr3t")
	_, err := p.SignIn(context.Background(), "ada@example.com", "s3cr3t")
	require.NoError(t, err)

	assert.Len(t, rec.kinds(), 1, "no events after unsubscribe")

	// a new subscriber sees the stored session
	var late recorder
	p.Subscribe(late.record)
	require.NotNil(t, late.last().Session)
	assert.Equal(t, "ada@example.com", late.last().Session.Email)
}

func TestSignUpAndSignIn(t *testing.T) {
	var provisioned []string

	p := newTestProvider(t, WithProvisioner(func(_ context.Context, userID, email string, meta map[string]string) error {
		provisioned = append(provisioned, userID+"|"+email+"|"+meta["role"])
		return nil
	}))

	var rec recorder
	p.Subscribe(rec.record)

	id, err := p.SignUp(context.Background(), identity.SignUpRequest{
		Email:    " Ada@Example.com",
		Password: "s3cr3t",
		Metadata: map[string]string{"role": "member"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, []string{id + "|ada@example.com|member"}, provisioned)
	assert.Equal(t, []identity.EventKind{identity.InitialSession}, rec.kinds(), "sign-up does not sign in")

	_, err = p.SignUp(context.Background(), identity.SignUpRequest{Email: "ada@example.com", Password: "other1"})
	require.ErrorIs(t, err, identity.ErrEmailTaken)

	_, err = p.SignIn(context.Background(), "ada@example.com", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = p.SignIn(context.Background(), "nobody@example.com", "s3cr3t")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	s, err := p.SignIn(context.Background(), "ADA@example.com", "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, id, s.UserID)
	assert.Len(t, s.AccessToken, uniuri.TokenLen)

	last := rec.last()
	assert.Equal(t, identity.SignedIn, last.Kind)
	assert.Equal(t, id, last.Session.UserID)

	current, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, s.AccessToken, current.AccessToken)
}

func TestSignUpUndoneWhenProvisioningFails(t *testing.T) {
	p := newTestProvider(t, WithProvisioner(func(context.Context, string, string, map[string]string) error {
		return errProvision
	}))

	_, err := p.SignUp(context.Background(), identity.SignUpRequest{Email: "ada@example.com", Password: "s3cr3t"})
	require.ErrorIs(t, err, errProvision)

	var count int64
	require.NoError(t, p.db.Model(&models.Credential{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteUser(t *testing.T) {
	p := newTestProvider(t)
	id := signUp(t, p, "ada@example.com", "s3cr3t")

	require.NoError(t, p.DeleteUser(context.Background(), id))
	require.NoError(t, p.DeleteUser(context.Background(), id), "deleting twice is fine")

	_, err := p.SignIn(context.Background(), "ada@example.com", "s3cr3t")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	signUp(t, p, "ada@example.com", "an0ther")
}

func TestSignOut(t *testing.T) {
	p := newTestProvider(t)
	signUp(t, p, "ada@example.com", "s3cr3t")

	_, err := p.SignIn(context.Background(), "ada@example.com", "s3cr3t")
	require.NoError(t, err)

	var rec recorder
	p.Subscribe(rec.record)

	require.NoError(t, p.SignOut(context.Background()))
	assert.Equal(t, identity.SignedOut, rec.last().Kind)
	assert.Nil(t, rec.last().Session)

	current, err := p.Current()
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSessionExpiry(t *testing.T) {
	p := newTestProvider(t)
	signUp(t, p, "ada@example.com", "s3cr3t")

	_, err := p.SignIn(context.Background(), "ada@example.com", "s3cr3t")
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	current, err := p.Current()
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestUpdatePassword(t *testing.T) {
	p := newTestProvider(t)
	signUp(t, p, "ada@example.com", "s3cr3t")

	require.ErrorIs(t, p.UpdatePassword(context.Background(), "n3w-pass"), identity.ErrNoSession)

	_, err := p.SignIn(context.Background(), "ada@example.com", "s3cr3t")
	require.NoError(t, err)

	var rec recorder
	p.Subscribe(rec.record)

	require.NoError(t, p.UpdatePassword(context.Background(), "n3w-pass"))
	assert.Equal(t, identity.UserUpdated, rec.last().Kind)

	_, err = p.SignIn(context.Background(), "ada@example.com", "s3cr3t")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = p.SignIn(context.Background(), "ada@example.com", "n3w-pass")
	require.NoError(t, err)
}

func TestLookupAndEndSession(t *testing.T) {
	p := newTestProvider(t)
	signUp(t, p, "ada@example.com", "s3cr3t")
	signUp(t, p, "grace@example.com", "s3cr3t")

	ctx := context.Background()

	ada, err := p.SignIn(ctx, "ada@example.com", "s3cr3t")
	require.NoError(t, err)

	grace, err := p.SignIn(ctx, "grace@example.com", "s3cr3t")
	require.NoError(t, err)

	got, err := p.Lookup(ctx, ada.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ada.UserID, got.UserID)

	for _, token := range []string{"", "forged", ada.AccessToken + "x"} {
		got, err = p.Lookup(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, got, token)
	}

	var rec recorder
	p.Subscribe(rec.record)

	// ending a session other than the current one is silent
	require.NoError(t, p.EndSession(ctx, ada.AccessToken))
	assert.Equal(t, []identity.EventKind{identity.InitialSession}, rec.kinds())

	got, err = p.Lookup(ctx, ada.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, got)

	current, err := p.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, grace.AccessToken, current.AccessToken)

	require.NoError(t, p.EndSession(ctx, grace.AccessToken))
	assert.Equal(t, identity.SignedOut, rec.last().Kind)

	current, err = p.Current()
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestUpdatePasswordActsForContextSession(t *testing.T) {
	p := newTestProvider(t)
	signUp(t, p, "ada@example.com", "s3cr3t")
	signUp(t, p, "grace@example.com", "s3cr3t")

	ctx := context.Background()

	ada, err := p.SignIn(ctx, "ada@example.com", "s3cr3t")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "grace@example.com", "s3cr3t")
	require.NoError(t, err)

	var rec recorder
	p.Subscribe(rec.record)

	require.NoError(t, p.UpdatePassword(identity.NewContext(ctx, ada), "n3w-pass"))
	assert.Len(t, rec.kinds(), 1, "ada is not the current session")

	_, err = p.SignIn(ctx, "ada@example.com", "n3w-pass")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "grace@example.com", "s3cr3t")
	require.NoError(t, err, "the current session's password is untouched")

	require.NoError(t, p.EndSession(ctx, ada.AccessToken))
	require.ErrorIs(t, p.UpdatePassword(identity.NewContext(ctx, ada), "other-pass"), identity.ErrNoSession)
}

func TestPasswordRecovery(t *testing.T) {
	mailer := &captureMailer{}
	p := newTestProvider(t, WithMailer(mailer))
	id := signUp(t, p, "ada@example.com", "s3cr3t")

	require.NoError(t, p.RequestPasswordReset(context.Background(), "nobody@example.com", "http://portal/reset-password"))
	assert.Empty(t, mailer.link, "unknown email sends nothing")

	require.NoError(t, p.RequestPasswordReset(context.Background(), "ada@example.com", "http://portal/reset-password"))
	assert.Equal(t, "ada@example.com", mailer.email)
	require.True(t, strings.HasPrefix(mailer.link, "http://portal/reset-password?token="))

	link, err := url.Parse(mailer.link)
	require.NoError(t, err)
	token := link.Query().Get("token")

	var rec recorder
	p.Subscribe(rec.record)

	_, err = p.VerifyRecovery(context.Background(), "bogus")
	require.ErrorIs(t, err, identity.ErrInvalidResetToken)

	s, err := p.VerifyRecovery(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, id, s.UserID)
	assert.Equal(t, identity.PasswordRecoveryStarted, rec.last().Kind)

	_, err = p.VerifyRecovery(context.Background(), token)
	require.ErrorIs(t, err, identity.ErrInvalidResetToken, "tokens are single use")
}

func TestSignInExternal(t *testing.T) {
	p := newTestProvider(t)
	id := signUp(t, p, "ada@example.com", "s3cr3t")

	_, err := p.signInExternal(context.Background(), &idClaims{Sub: "sub-1", Email: "ada@example.com"})
	require.ErrorIs(t, err, identity.ErrInvalidCredentials, "unverified email is not linked")

	_, err = p.signInExternal(context.Background(), &idClaims{Sub: "sub-2", Email: "bob@example.com", EmailVerified: true})
	require.ErrorIs(t, err, identity.ErrInvalidCredentials, "unknown accounts must register first")

	s, err := p.signInExternal(context.Background(), &idClaims{Sub: "sub-1", Email: "Ada@example.com", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, id, s.UserID)

	// linked by subject from now on, even if the email changed upstream
	s, err = p.signInExternal(context.Background(), &idClaims{Sub: "sub-1", Email: "ada@elsewhere.org"})
	require.NoError(t, err)
	assert.Equal(t, id, s.UserID)
}

func TestOIDCDisabled(t *testing.T) {
	p := newTestProvider(t)

	assert.False(t, p.OIDCEnabled())

	_, _, err := p.AuthCodeURL()
	require.ErrorIs(t, err, ErrOIDCDisabled)

	_, err = p.SignInWithCode(context.Background(), "code")
	require.ErrorIs(t, err, ErrOIDCDisabled)
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	now := time.Now()
	s.now = func() time.Time { return now }

	got, err := s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	val := []byte("v1")
	require.NoError(t, s.Set("k", val, time.Minute))
	val[0] = 'x'

	got, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Set("forever", []byte("v"), 0))

	now = now.Add(2 * time.Minute)

	got, err = s.Get("k")
	require.NoError(t, err)
	assert.Nil(t, got, "expired")

	got, err = s.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete("forever"))
	got, err = s.Get("forever")
	require.NoError(t, err)
	assert.Nil(t, got)
}
