package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/entities"
	applog "github.com/schooldesk/schooldesk/internal/logger"
)

type Database struct {
	DB     *gorm.DB
	Driver string
}

// NewDatabase opens the configured database and migrates all entities.
func NewDatabase(cfg config.Database) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		// Foreign keys and a busy timeout keep concurrent session writes from failing fast.
		dialector = sqlite.Open(cfg.Path + "?_foreign_keys=on&_busy_timeout=5000")
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Unique-index violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	log := applog.Get()
	log.Info().Str("driver", driver).Msg("database initialized")

	return &Database{DB: db, Driver: driver}, nil
}

// Migrate creates or updates the tables for all entities.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.User{},
		&entities.Student{},
		&entities.Staff{},
		&entities.Vendor{},
		&entities.FeeRenewal{},
		&entities.Notification{},
		&entities.Payment{},
		&entities.Expense{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SQL returns the underlying *sql.DB (used by the sqlite session store).
func (d *Database) SQL() (*sql.DB, error) {
	return d.DB.DB()
}

// Ping checks connectivity.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
