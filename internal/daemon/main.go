// Package daemon wires the portal together: database, identity provider,
// session reconciler, actions and the web service.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/db/controller/account"
	"github.com/memberportal/memberportal/internal/db/dsn"
	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/directory"
	"github.com/memberportal/memberportal/internal/identity/local"
	"github.com/memberportal/memberportal/internal/logger/adapter/stdlogger"
	"github.com/memberportal/memberportal/internal/profile"
	"github.com/memberportal/memberportal/internal/reconciler"
	"github.com/memberportal/memberportal/internal/web"
	"github.com/memberportal/memberportal/internal/web/handler"
)

const (
	sessionTable  = "identity_sessions"
	slowThreshold = 200 * time.Millisecond
)

// ErrConfigNil is returned when no config is given.
var ErrConfigNil = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
	reconciler *reconciler.Reconciler
	storage    local.Storage
}

// OpenDB connects to the configured database. SQL is logged through zerolog.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	level := gormlogger.Warn
	if cfg.DevMode {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dsn.Dialector(cfg), &gorm.Config{
		Logger: gormlogger.New(stdlogger.New("gorm"), gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the portal tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Profile{}, &models.Credential{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Groups computes the group directory straight from the data store.
func Groups(ctx context.Context, cfg *config.Config) ([]string, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	rows, err := account.New(db).GroupRows(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return directory.Groups(rows), nil
}

// sessionStorage returns the key/value storage of the identity provider.
func sessionStorage(cfg *config.Config) local.Storage {
	if cfg.Identity.SessionStorage != config.StorageDB {
		return local.NewMemoryStorage()
	}

	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		return sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.StorageURI(cfg),
			Table:         sessionTable,
		})
	case config.EnginePostgres:
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.StorageURI(cfg),
			Table:         sessionTable,
		})
	default:
		log.Warn().Str("engine", cfg.DB.GormEngine).Msg("no session storage for engine, sessions are kept in memory")
		return local.NewMemoryStorage()
	}
}

// New creates a Daemon instance with the provided configuration.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	if err = Migrate(db); err != nil {
		return nil, err
	}

	store := account.New(db)
	storage := sessionStorage(cfg)

	opts := []local.Option{local.WithProvisioner(actions.Provisioner(store))}

	if cfg.Identity.OIDC.Enabled {
		o, oerr := local.NewOIDC(ctx, local.OIDCConfig{
			ProviderURL:  cfg.Identity.OIDC.ProviderURL,
			ClientID:     cfg.Identity.OIDC.ClientID,
			ClientSecret: cfg.Identity.OIDC.ClientSecret,
			RedirectURL:  cfg.Identity.OIDC.RedirectURL,
			Scopes:       cfg.Identity.OIDC.Scopes,
		})
		if oerr != nil {
			return nil, oerr //nolint:wrapcheck
		}

		opts = append(opts, local.WithOIDC(o))
	}

	provider, err := local.New(db, storage, local.Config{
		SessionTTL:    cfg.Identity.SessionTTL,
		ResetTokenTTL: cfg.Identity.ResetTokenTTL,
	}, opts...)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err = seed(ctx, cfg, provider, store); err != nil {
		return nil, err
	}

	resolver := profile.NewResolver(store, cfg.Timeouts.Profile)
	groups := directory.New(store, cfg.Timeouts.Profile)
	rec := reconciler.New(provider, resolver, groups, reconciler.WithSignOutTimeout(cfg.Timeouts.Action))

	acts, err := actions.New(actions.Deps{
		Provider:  provider,
		Resolver:  resolver,
		Store:     store,
		Session:   rec,
		Directory: groups,
	}, actions.Config{BaseURL: cfg.Webserver.URL, Timeout: cfg.Timeouts.Action})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	webService, err := web.New(cfg, &handler.Deps{
		Actions:  acts,
		Session:  rec,
		Groups:   groups,
		OIDC:     provider,
		Tokens:   provider,
		Resolver: resolver,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &Daemon{
		cfg:        cfg,
		webService: webService,
		reconciler: rec,
		storage:    storage,
	}, nil
}

// Start runs the reconciler and the web service until SIGINT or SIGTERM.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.reconciler.Start(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	go d.webService.Follow(ctx, d.reconciler.Outcomes())
	go d.webService.WaitShutdown()

	err := d.webService.Start(":" + strconv.Itoa(d.cfg.Webserver.Port))

	d.reconciler.Stop()

	if closer, ok := d.storage.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close session storage")
		}
	}

	return err
}
