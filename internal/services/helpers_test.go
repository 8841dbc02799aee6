package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tasktracker/backend/internal/models"
	"github.com/tasktracker/backend/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	email := name + "@example.com"
	u := &models.User{Name: &name, Email: &email}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func expectErr(t *testing.T, err error, kind *response.AppError) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind.Kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %s error, got %T: %v", kind.Kind, err, err)
	}
}

func strPtr(s string) *string { return &s }

var ctx = context.Background()
