package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/auth"
	dbtestutil "github.com/lguportal/portal/internal/database/testutil"
	"github.com/lguportal/portal/internal/identity"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/testutil"
	"github.com/lguportal/portal/pkg/mail"
)

var fixtureStart = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)

type serviceFixture struct {
	db            *gorm.DB
	clock         *testutil.Clock
	audit         *AuditService
	notifications *NotificationService
	attempts      *LoginAttemptService
	sessions      *auth.SessionService
	jwt           *auth.JWTService
	auth          *AuthService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())
	clock := testutil.NewClock(fixtureStart)

	audit, err := NewAuditService(db, clock.Now)
	require.NoError(t, err)
	notifications, err := NewNotificationService(db, clock.Now)
	require.NoError(t, err)
	attempts, err := NewLoginAttemptService(db, DefaultLockoutPolicy(), clock.Now)
	require.NoError(t, err)
	sessions, err := auth.NewSessionService(db, auth.SessionConfig{Clock: clock.Now})
	require.NoError(t, err)
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "lgu-portal", Clock: clock.Now})
	require.NoError(t, err)

	authSvc, err := NewAuthService(AuthServiceDeps{
		DB:            db,
		Sessions:      sessions,
		JWT:           jwtSvc,
		Attempts:      attempts,
		Audit:         audit,
		Notifications: notifications,
		Clock:         clock.Now,
	})
	require.NoError(t, err)

	return &serviceFixture{
		db:            db,
		clock:         clock,
		audit:         audit,
		notifications: notifications,
		attempts:      attempts,
		sessions:      sessions,
		jwt:           jwtSvc,
		auth:          authSvc,
	}
}

func asUser(user *models.User) context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IPAddress: "203.0.113.10",
		UserAgent: "test-agent",
	})
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}
