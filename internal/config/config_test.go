package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func etcPath(t *testing.T) string {
	t.Helper()

	// Get the project root by going up from internal/config
	projectRoot, err := filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	return filepath.Join(projectRoot, "etc") + string(filepath.Separator)
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(etcPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title == "" {
		t.Error("Config.Title should not be empty")
	}

	if cfg.Webserver.Port == 0 {
		t.Error("Webserver.Port should not be 0")
	}

	if cfg.Webserver.URL == "" {
		t.Error("Webserver.URL should not be empty")
	}

	if cfg.DB.GormEngine != EngineSQLite {
		t.Errorf("DB.GormEngine = %q, want %q", cfg.DB.GormEngine, EngineSQLite)
	}

	if cfg.Timeouts.Profile != 30*time.Second {
		t.Errorf("Timeouts.Profile = %v, want 30s", cfg.Timeouts.Profile)
	}

	if cfg.Timeouts.Action != 20*time.Second {
		t.Errorf("Timeouts.Action = %v, want 20s", cfg.Timeouts.Action)
	}

	if cfg.Identity.SessionTTL != 24*time.Hour {
		t.Errorf("Identity.SessionTTL = %v, want 24h", cfg.Identity.SessionTTL)
	}

	if cfg.Log.File.AccessLog != "access.log" {
		t.Errorf("Log.File.AccessLog = %q, want access.log", cfg.Log.File.AccessLog)
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	if _, err := ReadConfig(t.TempDir() + string(filepath.Separator)); err == nil {
		t.Fatal("ReadConfig() on an empty directory should fail")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name: "valid config",
			config: Config{
				Webserver: Webserver{
					Port: 8080,
					URL:  "http://localhost:8080",
				},
			},
		},
		{
			name: "missing port",
			config: Config{
				Webserver: Webserver{
					Port: 0,
					URL:  "http://localhost:8080",
				},
			},
			wantErr: ErrWebServerPortCanNotBeZero,
		},
		{
			name: "missing URL",
			config: Config{
				Webserver: Webserver{
					Port: 8080,
					URL:  "",
				},
			},
			wantErr: ErrEmptyURL,
		},
		{
			name: "unknown engine",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				DB:        DB{GormEngine: "oracle"},
			},
			wantErr: ErrUnknownDBEngine,
		},
		{
			name: "unknown session storage",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				Identity:  Identity{SessionStorage: "redis"},
			},
			wantErr: ErrUnknownSessionStorage,
		},
		{
			name: "session storage on sqlite",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				Identity:  Identity{SessionStorage: StorageDB},
			},
			wantErr: ErrSessionStorageEngine,
		},
		{
			name: "session storage on postgres",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				DB:        DB{GormEngine: EnginePostgres},
				Identity:  Identity{SessionStorage: StorageDB},
			},
		},
		{
			name: "oidc without provider",
			config: Config{
				Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
				Identity:  Identity{OIDC: OIDC{Enabled: true, ClientID: "portal"}},
			},
			wantErr: ErrOIDCIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(&tt.config)
			if tt.wantErr == nil && err != nil {
				t.Errorf("validate() error = %v, want nil", err)
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	c := Config{Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"}}

	if err := validate(&c); err != nil {
		t.Fatalf("validate() error = %v", err)
	}

	if c.Webserver.ShutDownTime != defaultShutDownTime {
		t.Errorf("ShutDownTime = %d, want %d", c.Webserver.ShutDownTime, defaultShutDownTime)
	}

	if c.DB.GormEngine != EngineSQLite {
		t.Errorf("GormEngine = %q, want %q", c.DB.GormEngine, EngineSQLite)
	}

	if c.Identity.SessionStorage != StorageMemory {
		t.Errorf("SessionStorage = %q, want %q", c.Identity.SessionStorage, StorageMemory)
	}

	if c.Timeouts.Profile != defaultProfileTimeout || c.Timeouts.Action != defaultActionTimeout {
		t.Errorf("Timeouts = %+v, want defaults", c.Timeouts)
	}
}

func TestReadConfigWithJSONOverride(t *testing.T) {
	jsonOverride := `{"Title":"Test Override","Webserver":{"Port":9090}}`
	t.Setenv(EnvConfigJSON, jsonOverride)

	cfg, err := ReadConfig(etcPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title != "Test Override" {
		t.Errorf("Title = %v, want %v", cfg.Title, "Test Override")
	}

	if cfg.Webserver.Port != 9090 {
		t.Errorf("Webserver.Port = %v, want %v", cfg.Webserver.Port, 9090)
	}

	// untouched keys keep their file value
	if cfg.Webserver.URL != "http://localhost:8080" {
		t.Errorf("Webserver.URL = %v, want file value", cfg.Webserver.URL)
	}
}

func TestReadConfigWithBrokenJSONOverride(t *testing.T) {
	t.Setenv(EnvConfigJSON, `{"Title":`)

	if _, err := ReadConfig(etcPath(t)); err == nil {
		t.Fatal("ReadConfig() should fail on a broken json override")
	}
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{
		Title:   "Test",
		DevMode: true,
		Webserver: Webserver{
			Port: 8080,
			URL:  "http://localhost:8080",
		},
	}

	tomlStr, err := DumpConfig(&cfg)
	if err != nil {
		t.Fatalf("DumpConfig() error = %v", err)
	}

	if !strings.Contains(tomlStr, "Test") {
		t.Error("DumpConfig() output should contain Title")
	}
}

func TestDumpConfigJSON(t *testing.T) {
	cfg := Config{
		Title:   "Test",
		DevMode: true,
		Webserver: Webserver{
			Port: 8080,
			URL:  "http://localhost:8080",
		},
	}

	jsonStr, err := DumpConfigJSON(&cfg)
	if err != nil {
		t.Fatalf("DumpConfigJSON() error = %v", err)
	}

	if !strings.Contains(jsonStr, `"Title": "Test"`) {
		t.Errorf("DumpConfigJSON() output should contain Title, got %s", jsonStr)
	}
}
