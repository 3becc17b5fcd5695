package migration

import (
	"fmt"

	appconfig "github.com/BaSui01/imagine3d/config"
)

// NewMigratorFromConfig creates a new migrator from application configuration
func NewMigratorFromConfig(cfg *appconfig.Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig creates a migrator on the same database the
// audit store writes to.
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	// DSN() switches on the canonical driver name.
	dbCfg.Driver = string(dbType)
	dsn := dbCfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("empty DSN for database type: %s", dbType)
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DSN:          dsn,
		TableName:    DefaultTableName,
	})
}

// NewMigratorFromDSN creates a new migrator from a driver name and DSN
func NewMigratorFromDSN(dbType, dsn string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}
	return NewMigrator(&Config{
		DatabaseType: dt,
		DSN:          dsn,
		TableName:    DefaultTableName,
	})
}
