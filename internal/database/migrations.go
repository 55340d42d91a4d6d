package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/crypto"
	"github.com/lguportal/portal/pkg/logger"
)

// SeedOptions controls the bootstrap administrator created on first start.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Notification{},
		&models.LoginAttempt{},
		&models.AuditLog{},
		&models.EmailVerification{},
		&models.IssueReport{},
		&models.Project{},
		&models.CacheEntry{},
	)
}

// SeedData creates the bootstrap administrator when no admin account exists.
// It is a no-op when AdminEmail or AdminPassword is empty.
func SeedData(db *gorm.DB, opts SeedOptions) error {
	email := strings.ToLower(strings.TrimSpace(opts.AdminEmail))
	if email == "" || opts.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return fmt.Errorf("seed admin: email %q already registered with role %s", email, existing.Role)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := crypto.HashPassword(opts.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := models.User{
		BaseModel:        models.BaseModel{CreatedAt: now, UpdatedAt: now},
		Email:            email,
		Password:         hash,
		Role:             models.RoleAdmin,
		Status:           models.UserStatusActive,
		EmailVerified:    true,
		FirstName:        "System",
		LastName:         "Administrator",
		ProfileCompleted: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	logger.WithModule("database").Info("seeded administrator account", zap.String("email", email))
	return nil
}
