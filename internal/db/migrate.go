package db

import (
	"fmt"
	"time"

	"github.com/diewo77/devisflow/internal/config"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	connectAttempts = 5
	connectDelay    = 2 * time.Second
)

// Connect opens the configured database. Postgres gets a few attempts so
// the server can wait for a container that is still starting.
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if cfg.Debug {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	switch cfg.Driver {
	case "sqlite", "":
		db, err := gorm.Open(sqlite.Open(cfg.Path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		return db, nil
	case "postgres":
		var db *gorm.DB
		var err error
		for i := 0; i < connectAttempts; i++ {
			db, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
			if err == nil {
				return db, nil
			}
			log.Warnw("database connection failed, retrying",
				"attempt", i+1, "max_attempts", connectAttempts, "error", err)
			time.Sleep(connectDelay)
		}
		return nil, fmt.Errorf("connect postgres: %w", err)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies the GORM migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Entry{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ConnectAndMigrate opens the database and migrates it when enabled.
func ConnectAndMigrate(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	db, err := Connect(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if cfg.App.Migrations {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}
