package config

import (
	"time"

	"github.com/memberportal/memberportal/internal/logger"
)

// Identity session storage backends.
const (
	StorageMemory = "memory"
	StorageDB     = "db" // gofiber storage on the configured mysql or postgres database
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Identity  Identity
	Timeouts  Timeouts
}

// Webserver implement webserver settings.
type Webserver struct {
	Port         int    // listening port for the webserver
	ShutDownTime int    // wait time for shutdown
	URL          string // base url for the webserver, also used for password reset links
}

// Identity configures the built-in identity provider.
type Identity struct {
	SessionStorage string        // memory or db
	SessionTTL     time.Duration // lifetime of a signed-in session
	ResetTokenTTL  time.Duration // lifetime of a password reset token
	OIDC           OIDC
	Bootstrap      Bootstrap
}

// Bootstrap creates the first administrator on an empty installation.
type Bootstrap struct {
	Email    string
	Password string
}

// OIDC holds OpenID Connect settings for the code flow sign-in.
type OIDC struct {
	Enabled      bool
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Timeouts bound every remote call.
type Timeouts struct {
	Profile time.Duration // profile lookups and group directory reloads
	Action  time.Duration // identity provider and data store calls made by actions
}
