package store

import (
	"fmt"

	"idp-node/pkg/logger"
	"idp-node/pkg/utilities"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type DatabaseConfigJson struct {
	Driver           string `json:"driver"`
	ConnectionString string `json:"connection_string"`
	Migrate          bool   `json:"migrate"`
}

type DatabaseConfig struct {
	Driver           string
	ConnectionString string
	Migrate          bool
}

func (dcj DatabaseConfigJson) ConvertToDomain() DatabaseConfig {
	driver := dcj.Driver
	if driver == "" {
		driver = DriverSqlite
	}
	return DatabaseConfig{
		Driver:           driver,
		ConnectionString: utilities.EnvOrDefault("DATABASE_CONNECTION_STRING", dcj.ConnectionString),
		Migrate:          dcj.Migrate,
	}
}

func ConnectToDatabase(cfg DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	log.Infof("Establishing connection to %s database", cfg.Driver)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSqlite:
		dialector = sqlite.Open(cfg.ConnectionString)
	case DriverPostgres:
		dialector = postgres.Open(cfg.ConnectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot establish database connection: %w", err)
	}

	if cfg.Migrate {
		if err := AutoMigrate(db, log); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB, log *logger.Logger) error {
	log.Info("Running migrations for tables... ")
	if err := db.AutoMigrate(allRecords()...); err != nil {
		return fmt.Errorf("migrating database failed: %w", err)
	}
	log.Info("All tables created (or already exist).")
	return nil
}
