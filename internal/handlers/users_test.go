package handlers_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/handlers/testutil"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/services"
	sharedtestutil "github.com/lguportal/portal/internal/testutil"
)

func TestAdminListUsers(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("maria@lgu.test", models.RoleCitizen)
	env.CreateUser("jose@lgu.test", models.RoleEngineer)
	_, token := env.LoginAs("admin@lgu.test", models.RoleAdmin)

	w := env.Request(http.MethodGet, "/api/admin/users?role=engineer", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.EqualValues(t, 1, resp.Meta.Total)

	var users []testutil.UserPayload
	testutil.DecodeInto(t, resp.Data, &users)
	require.Equal(t, "jose@lgu.test", users[0].Email)
	require.NotContains(t, w.Body.String(), `"password"`)

	w = env.Request(http.MethodGet, "/api/admin/users?q=MARIA", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, testutil.DecodeResponse(t, w).Meta.Total)

	w = env.Request(http.MethodGet, fmt.Sprintf("/api/admin/users/%d", users[0].ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	_, citizenToken := env.LoginAs("citizen@lgu.test", models.RoleCitizen)
	w = env.Request(http.MethodGet, "/api/admin/users", nil, citizenToken)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminDeactivationEndsSessions(t *testing.T) {
	env := testutil.NewEnv(t)
	_, adminToken := env.LoginAs("admin@lgu.test", models.RoleAdmin)
	citizen, citizenToken := env.LoginAs("citizen@lgu.test", models.RoleCitizen)

	w := env.Request(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", citizen.ID), map[string]string{"status": "inactive"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "inactive", updated.Status)

	w = env.Request(http.MethodGet, "/api/auth/me", nil, citizenToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var entries int64
	require.NoError(t, env.DB.Model(&models.AuditLog{}).Where("action = ?", services.AuditUserStatusChanged).Count(&entries).Error)
	require.EqualValues(t, 1, entries)

	count, err := env.Deps.Notifications.UnreadCount(context.Background(), citizen.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	w = env.Request(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", citizen.ID), map[string]string{"status": "banished"}, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminActivatesPendingStaff(t *testing.T) {
	env := testutil.NewEnv(t)
	pending := sharedtestutil.MustCreateUser(t, env.DB, "engineer@lgu.test",
		sharedtestutil.WithRole(models.RoleEngineer), sharedtestutil.WithStatus(models.UserStatusPending))
	_, adminToken := env.LoginAs("admin@lgu.test", models.RoleAdmin)

	w := env.Request(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", pending.ID), map[string]string{"status": "active"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.ResetCookies()
	env.Login("engineer@lgu.test", sharedtestutil.DefaultPassword)
}

func TestAdminChangeRole(t *testing.T) {
	env := testutil.NewEnv(t)
	admin, adminToken := env.LoginAs("admin@lgu.test", models.RoleAdmin)
	user := env.CreateUser("staff@lgu.test", models.RoleStaff)

	w := env.Request(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", user.ID), map[string]string{"role": "supervisor"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "supervisor", updated.Role)

	w = env.Request(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", user.ID), map[string]string{"role": "mayor"}, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Admins cannot demote or deactivate themselves.
	w = env.Request(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", admin.ID), map[string]string{"role": "citizen"}, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = env.Request(http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", admin.ID), map[string]string{"status": "inactive"}, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPatch, "/api/admin/users/9999/role", map[string]string{"role": "staff"}, adminToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminAuditLog(t *testing.T) {
	env := testutil.NewEnv(t)
	admin, token := env.LoginAs("admin@lgu.test", models.RoleAdmin)

	w := env.Request(http.MethodGet, fmt.Sprintf("/api/admin/audit?action=login&user_id=%d", admin.ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.EqualValues(t, 1, resp.Meta.Total)

	var logs []models.AuditLog
	testutil.DecodeInto(t, resp.Data, &logs)
	require.Equal(t, services.AuditLogin, logs[0].Action)

	tomorrow := time.Now().UTC().Add(24 * time.Hour).Format(time.DateOnly)
	w = env.Request(http.MethodGet, "/api/admin/audit?since="+tomorrow, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, testutil.DecodeResponse(t, w).Meta.Total)

	w = env.Request(http.MethodGet, "/api/admin/audit?since=yesterday", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	_, officerToken := env.LoginAs("officer@lgu.test", models.RoleLGUOfficer)
	w = env.Request(http.MethodGet, "/api/admin/audit", nil, officerToken)
	require.Equal(t, http.StatusForbidden, w.Code)
}
