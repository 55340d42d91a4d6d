package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/app"
	testutil "github.com/lguportal/portal/internal/database/testutil"
	"github.com/lguportal/portal/internal/models"
)

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %q not found", id)
	return Check{}
}

func TestAuditorRun(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	require.NoError(t, db.Create(&models.User{
		Email:    "admin@lgu.test",
		Password: "hashed",
		Role:     models.RoleAdmin,
		Status:   models.UserStatusActive,
	}).Error)

	cfg := &app.Config{}
	cfg.Server.PublicURL = "https://portal.example.gov"
	cfg.Auth.JWT.Secret = "0123456789abcdef0123456789abcdef0123456789abcdef"
	cfg.Auth.Session.TTL = 24 * time.Hour
	cfg.Auth.Session.CookieSecure = true
	cfg.Email.SMTP.Enabled = true
	cfg.Email.SMTP.UseTLS = true

	auditor := NewAuditor(db, cfg)
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	auditor.WithClock(func() time.Time { return fixed })

	result := auditor.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 6)
	require.Equal(t, 6, result.Summary[string(StatusPass)])
}

func TestAuditorFlagsWeakConfiguration(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	require.NoError(t, db.Create(&models.User{
		Email:    "dormant@lgu.test",
		Password: "hashed",
		Role:     models.RoleAdmin,
		Status:   models.UserStatusInactive,
	}).Error)

	cfg := &app.Config{}
	cfg.Server.PublicURL = "https://portal.example.gov"
	cfg.Auth.JWT.Secret = "short"
	cfg.Auth.Session.TTL = 30 * 24 * time.Hour
	cfg.Auth.Lockout.Threshold = 50

	result := NewAuditor(db, cfg).Run(context.Background())

	require.Equal(t, StatusFail, findCheck(t, result, "active_admin_present").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "session_cookie_secure").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "session_ttl").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "login_lockout").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "email_delivery").Status)
	require.Equal(t, 3, result.Summary[string(StatusFail)])
}

func TestAuditorWithoutDependencies(t *testing.T) {
	result := NewAuditor(nil, nil).Run(context.Background())
	require.Equal(t, len(result.Checks), result.Summary[string(StatusWarn)])
}
