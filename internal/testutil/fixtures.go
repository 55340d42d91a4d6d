package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/crypto"
)

// DefaultPassword is the plaintext password given to fixture users.
const DefaultPassword = "Password123"

// UserOption customises fixture users.
type UserOption func(*models.User)

// WithRole sets the fixture role.
func WithRole(role models.Role) UserOption {
	return func(u *models.User) { u.Role = role }
}

// WithStatus sets the fixture status.
func WithStatus(status models.UserStatus) UserOption {
	return func(u *models.User) { u.Status = status }
}

// MustCreateUser inserts an active, verified citizen unless options say otherwise.
func MustCreateUser(t *testing.T, db *gorm.DB, email string, opts ...UserOption) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(DefaultPassword)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &models.User{
		BaseModel:     models.BaseModel{CreatedAt: now, UpdatedAt: now},
		Email:         strings.ToLower(email),
		Password:      hash,
		Role:          models.RoleCitizen,
		Status:        models.UserStatusActive,
		EmailVerified: true,
	}
	for _, opt := range opts {
		opt(user)
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
