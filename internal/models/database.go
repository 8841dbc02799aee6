package models

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tasktracker/backend/internal/config"
	applog "github.com/tasktracker/backend/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Dialector picks the gorm driver for the configured database.
func Dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func InitDB(cfg *config.DatabaseConfig) error {
	dialector, err := Dialector(cfg)
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite serializes writers; one connection avoids "database is locked"
		// between concurrent transactions.
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	DB = db
	return nil
}

// Migrate registers the custom join tables and migrates every model.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Project{}, "Members", &ProjectMember{}); err != nil {
		return fmt.Errorf("setup project_members: %w", err)
	}
	return db.AutoMigrate(
		&User{},
		&Project{},
		&ProjectMember{},
		&Tag{},
		&Task{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// newGormLogger routes gorm's SQL log through zerolog at a level derived
// from the application logger.
func newGormLogger() logger.Interface {
	level := logger.Warn
	switch applog.Level() {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		level = logger.Info
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		level = logger.Error
	}
	return logger.New(zerologWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	applog.Info().Str("component", "gorm").Msgf(format, args...)
}
