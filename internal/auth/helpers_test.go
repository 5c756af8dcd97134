package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/database/users"
	"github.com/schooldesk/schooldesk/internal/entities"
)

// testAuthConfig uses cheap argon2 parameters and insecure cookies so
// httptest requests over plain HTTP carry the session cookie.
func testAuthConfig() config.Auth {
	return config.Auth{
		Mode:              config.AuthModeLocal,
		SessionLifetime:   time.Hour,
		SecureCookies:     false,
		DefaultRole:       string(entities.UserRoleTeacher),
		Argon2MemoryKiB:   1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
		MaxLoginAttempts:  3,
		RateLimitWindow:   time.Minute,
		LockoutDuration:   time.Minute,
		LoginRPS:          1000,
		LoginBurst:        1000,
	}
}

// setupTestDB opens a file-backed sqlite database so every pooled
// connection sees the same schema.
func setupTestDB(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&entities.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return db, sqlDB
}

func setupTestService(t *testing.T) (*Service, *users.Repository) {
	t.Helper()
	db, _ := setupTestDB(t)
	repo := users.NewRepository(db)
	return NewService(repo, testAuthConfig()), repo
}

// seedAdmin creates the admin@test.com / admin123 account.
func seedAdmin(t *testing.T, svc *Service) *entities.User {
	t.Helper()
	user, err := svc.CreateLocalUser(context.Background(), LocalUserInput{
		ID:        "test-admin-user",
		Email:     "admin@test.com",
		Password:  "admin123",
		FirstName: "Admin",
		LastName:  "User",
		Role:      entities.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	return user
}
