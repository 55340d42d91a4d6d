package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/crypto"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateCreatesPortalTables(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, model := range []any{
		&models.User{},
		&models.Session{},
		&models.Notification{},
		&models.LoginAttempt{},
		&models.AuditLog{},
		&models.EmailVerification{},
		&models.IssueReport{},
		&models.Project{},
		&models.CacheEntry{},
	} {
		require.True(t, migrator.HasTable(model), "missing table for %T", model)
	}
}

func TestAutoMigrateAndSeedCreatesAdminOnce(t *testing.T) {
	db := openTestDB(t)
	seed := SeedOptions{AdminEmail: "Admin@LGU.gov.ph", AdminPassword: "changeme123"}

	require.NoError(t, AutoMigrateAndSeed(db, seed))
	require.NoError(t, AutoMigrateAndSeed(db, seed))

	var admins []models.User
	require.NoError(t, db.Where("role = ?", models.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	require.Equal(t, "admin@lgu.gov.ph", admins[0].Email)
	require.Equal(t, models.UserStatusActive, admins[0].Status)
	require.True(t, crypto.VerifyPassword(admins[0].Password, "changeme123"))
}

func TestSeedDataSkipsWithoutCredentials(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db, SeedOptions{}))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := Open(Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
