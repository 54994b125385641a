package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agency-gamification/config"
	"agency-gamification/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Open connects to Postgres, or to SQLite when the DSN starts with "sqlite:"
// (local development and tests).
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	isSQLite := strings.HasPrefix(cfg.DSN, sqlitePrefix)
	if isSQLite {
		dialector = sqlite.Open(strings.TrimPrefix(cfg.DSN, sqlitePrefix))
	} else {
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isSQLite {
		// SQLite allows one writer; a single connection serialises
		// transactions instead of failing them with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	slog.Info("database connected", slog.String("dialect", db.Dialector.Name()))
	return db, nil
}

// AutoMigrate creates or updates the gamification tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GamificationProfile{},
		&models.ProfileBadge{},
		&models.XPActivityLog{},
		&models.WorkSession{},
		&models.HunterLead{},
	)
}

func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
