package local

import "errors"

var (
	// ErrOIDCDisabled is returned when an OIDC sign-in is attempted without OIDC configured.
	ErrOIDCDisabled = errors.New("oidc authentication is disabled")

	// ErrNoIDToken is returned when the OAuth2 token response doesn't contain an ID token.
	ErrNoIDToken = errors.New("no id_token in token response")

	// ErrNoEmailClaim is returned when the ID token carries no email to match an account.
	ErrNoEmailClaim = errors.New("id token has no email claim")

	// ErrDBNil is returned when the provider was built without a database.
	ErrDBNil = errors.New("database connection is nil")
)
