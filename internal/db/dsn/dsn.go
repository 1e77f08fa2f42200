// Package dsn builds connection strings and gorm dialectors from the configuration.
package dsn

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/memberportal/memberportal/internal/config"
)

// Create builds the gorm data source name for the configured engine.
func Create(cfg *config.Config) string {
	db := cfg.DB

	switch db.GormEngine {
	case config.EngineMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Name,
			db.Extras,
		)
	case config.EnginePostgres:
		return strings.TrimSpace(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d %s",
			db.Host,
			db.User,
			db.Password,
			db.Name,
			db.Port,
			db.Extras,
		))
	default:
		if db.Path == "" {
			return ":memory:"
		}

		return db.Path
	}
}

// StorageURI builds the connection URI the gofiber storage drivers expect.
// sqlite has no storage driver and yields an empty string.
func StorageURI(cfg *config.Config) string {
	db := cfg.DB

	switch db.GormEngine {
	case config.EngineMySQL:
		return Create(cfg)
	case config.EnginePostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(db.User, db.Password),
			Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
			Path:     "/" + db.Name,
			RawQuery: db.Extras,
		}

		return u.String()
	default:
		return ""
	}
}

// Dialector returns the gorm dialector for the configured engine.
func Dialector(cfg *config.Config) gorm.Dialector {
	switch cfg.DB.GormEngine {
	case config.EngineMySQL:
		return mysql.Open(Create(cfg))
	case config.EnginePostgres:
		return postgres.Open(Create(cfg))
	default:
		return sqlite.Open(Create(cfg))
	}
}
