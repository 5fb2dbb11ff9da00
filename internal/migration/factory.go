package migration

import (
	"errors"

	"github.com/BaSui01/clubcms/config"
)

// ErrNoPostgres is returned when the configuration selects the local SQLite store.
var ErrNoPostgres = errors.New("DATABASE_URL is not a postgres URL; SQLite schemas are created by init-db")

// NewMigratorFromConfig creates a new migrator from application configuration
func NewMigratorFromConfig(cfg *config.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if !cfg.Database.UsePostgres() {
		return nil, ErrNoPostgres
	}
	return NewMigrator(&Config{
		DatabaseURL: cfg.Database.DSN(),
		TableName:   DefaultTableName,
	})
}

// NewMigratorFromURL creates a new migrator from a database URL
func NewMigratorFromURL(dbURL string) (*DefaultMigrator, error) {
	return NewMigrator(&Config{
		DatabaseURL: dbURL,
		TableName:   DefaultTableName,
	})
}
