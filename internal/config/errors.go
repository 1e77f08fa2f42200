package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrUnknownDBEngine error if config db.gormEngine names an unsupported driver.
	ErrUnknownDBEngine = errors.New("toml config db.gormEngine must be sqlite, mysql or postgres")

	// ErrUnknownSessionStorage error if config identity.sessionStorage is not memory or db.
	ErrUnknownSessionStorage = errors.New("toml config identity.sessionStorage must be memory or db")

	// ErrSessionStorageEngine error if sessions go to the database but the engine is sqlite.
	ErrSessionStorageEngine = errors.New("toml config identity.sessionStorage db needs a mysql or postgres engine")

	// ErrOIDCIncomplete error if oidc is enabled without provider url or client id.
	ErrOIDCIncomplete = errors.New("toml config identity.oidc needs providerURL and clientID when enabled")
)
