// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvConfigJSON names the environment variable holding a JSON document that
// is merged over the main config file.
const EnvConfigJSON = "PORTAL_CONFIG_JSON"

const (
	defaultShutDownTime   = 5
	defaultProfileTimeout = 30 * time.Second
	defaultActionTimeout  = 20 * time.Second
	defaultSessionTTL     = 24 * time.Hour
	defaultResetTokenTTL  = time.Hour
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigFile(path + "main.toml")
	v.SetConfigType("toml")

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv(EnvConfigJSON)

	if JSONConfigEnv != "" {
		if err = mergeJSON(v, JSONConfigEnv); err != nil {
			return Config{}, err
		}
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	return c, validate(&c)
}

func mergeJSON(v *viper.Viper, configAsJSON string) error {
	v.SetConfigType("json")

	if err := v.MergeConfig(strings.NewReader(configAsJSON)); err != nil {
		return errors.Wrap(err, "failed to merge json config from env")
	}

	return nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	out, err := toml.Marshal(c)
	if err != nil {
		return "", err //nolint: wrapcheck
	}

	return string(out), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate the settings the daemon can not start without and fill in defaults.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	switch c.DB.GormEngine {
	case "":
		c.DB.GormEngine = EngineSQLite
	case EngineSQLite, EngineMySQL, EnginePostgres:
	default:
		return errors.Wrap(ErrUnknownDBEngine, invalidErrMessage)
	}

	switch c.Identity.SessionStorage {
	case "":
		c.Identity.SessionStorage = StorageMemory
	case StorageMemory, StorageDB:
	default:
		return errors.Wrap(ErrUnknownSessionStorage, invalidErrMessage)
	}

	if c.Identity.SessionStorage == StorageDB && c.DB.GormEngine == EngineSQLite {
		return errors.Wrap(ErrSessionStorageEngine, invalidErrMessage)
	}

	if c.Identity.OIDC.Enabled && (c.Identity.OIDC.ProviderURL == "" || c.Identity.OIDC.ClientID == "") {
		return errors.Wrap(ErrOIDCIncomplete, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}

	if c.Timeouts.Profile <= 0 {
		c.Timeouts.Profile = defaultProfileTimeout
	}

	if c.Timeouts.Action <= 0 {
		c.Timeouts.Action = defaultActionTimeout
	}

	if c.Identity.SessionTTL <= 0 {
		c.Identity.SessionTTL = defaultSessionTTL
	}

	if c.Identity.ResetTokenTTL <= 0 {
		c.Identity.ResetTokenTTL = defaultResetTokenTTL
	}

	return nil
}
