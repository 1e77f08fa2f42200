package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberportal/memberportal/internal/actions"
	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/db/controller/account"
	"github.com/memberportal/memberportal/internal/db/models"
	"github.com/memberportal/memberportal/internal/identity/local"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Title: "portal-test",
		DB: config.DB{
			GormEngine: config.EngineSQLite,
			Path:       filepath.Join(t.TempDir(), "portal.db"),
		},
		Webserver: config.Webserver{Port: 8080, URL: "http://localhost:8080"},
		Identity: config.Identity{
			SessionStorage: config.StorageMemory,
			Bootstrap:      config.Bootstrap{Email: "root@example.com", Password: "changeme"},
		},
	}
}

func TestOpenDBRequiresConfig(t *testing.T) {
	_, err := OpenDB(nil)
	require.ErrorIs(t, err, ErrConfigNil)

	_, err = New(context.Background(), nil)
	require.ErrorIs(t, err, ErrConfigNil)
}

func TestMigrateAndGroups(t *testing.T) {
	cfg := newTestConfig(t)

	db, err := OpenDB(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	label := "Tenors"
	require.NoError(t, account.New(db).Create(context.Background(), &models.Profile{ID: "u1", Email: "a@example.com", GroupLabel: &label}))

	groups, err := Groups(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{models.AllGroups, "Tenors"}, groups)
}

func TestSeed(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()

	db, err := OpenDB(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	store := account.New(db)
	provider, err := local.New(db, nil, local.Config{}, local.WithProvisioner(actions.Provisioner(store)))
	require.NoError(t, err)

	require.NoError(t, seed(ctx, cfg, provider, store))
	require.NoError(t, seed(ctx, cfg, provider, store), "an administrator exists, nothing to do")

	profiles, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, models.RoleAdministrator, profiles[0].Role)
	assert.Equal(t, models.StatusActive, profiles[0].Status)

	s, err := provider.SignIn(ctx, "root@example.com", "changeme")
	require.NoError(t, err)
	assert.Equal(t, profiles[0].ID, s.UserID)
}

func TestSeedDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Identity.Bootstrap = config.Bootstrap{}

	require.NoError(t, seed(context.Background(), cfg, nil, nil))
}

func TestNew(t *testing.T) {
	d, err := New(context.Background(), newTestConfig(t))
	require.NoError(t, err)
	require.NotNil(t, d.webService)
	assert.IsType(t, &local.MemoryStorage{}, d.storage)
}
