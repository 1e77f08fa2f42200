package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/identity"
	"github.com/memberportal/memberportal/internal/uniuri"
)

// OIDCConfig holds OpenID Connect settings.
type OIDCConfig struct {
	// ProviderURL is the issuer discovery URL (e.g., "https://accounts.google.com").
	ProviderURL string
	// ClientID is the OAuth2 client identifier.
	ClientID string
	// ClientSecret is the OAuth2 client secret.
	ClientSecret string
	// RedirectURL receives the authorization code.
	RedirectURL string
	// Scopes default to openid, profile and email.
	Scopes []string
}

// OIDC wraps the oauth2 code exchange and ID token verification.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
}

// idClaims are the ID token claims used to match an account.
type idClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// NewOIDC discovers the issuer and prepares the code flow.
func NewOIDC(ctx context.Context, cfg OIDCConfig) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, cfg.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDC{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// exchange trades the code for a verified ID token and returns its claims.
func (o *OIDC) exchange(ctx context.Context, code string) (*idClaims, error) {
	token, err := o.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims idClaims
	if err = idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	if claims.Email == "" {
		return nil, ErrNoEmailClaim
	}

	return &claims, nil
}

// OIDCEnabled reports whether the code flow is available.
func (p *Provider) OIDCEnabled() bool {
	return p.oidc != nil
}

// AuthCodeURL returns the issuer's authorization URL and the state to check on callback.
func (p *Provider) AuthCodeURL() (authURL, state string, err error) {
	if p.oidc == nil {
		return "", "", ErrOIDCDisabled
	}

	if state, err = uniuri.NewLen(uniuri.TokenLen / 2); err != nil {
		return "", "", err
	}

	return p.oidc.oauth2.AuthCodeURL(state), state, nil
}

// SignInWithCode completes the code flow. Only accounts that registered
// beforehand can sign in; the match is by subject, then by email.
func (p *Provider) SignInWithCode(ctx context.Context, code string) (*identity.Session, error) {
	if p.oidc == nil {
		return nil, ErrOIDCDisabled
	}

	claims, err := p.oidc.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return p.signInExternal(ctx, claims)
}

func (p *Provider) signInExternal(ctx context.Context, claims *idClaims) (*identity.Session, error) {
	db := p.db.WithContext(ctx)

	var cred models.Credential

	err := db.Where("external_id = ?", claims.Sub).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if !claims.EmailVerified {
			return nil, identity.ErrInvalidCredentials
		}

		err = db.Where("email = ?", normalizeEmail(claims.Email)).First(&cred).Error
		if err == nil {
			cred.ExternalID = claims.Sub
			err = db.Model(&cred).Update("external_id", claims.Sub).Error
		}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.ErrInvalidCredentials
	}

	if err != nil {
		return nil, upstream("oidc sign in", err)
	}

	return p.open(&cred, identity.SignedIn)
}
