package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/handlers/testutil"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/services"
)

func seedNotifications(t *testing.T, env *testutil.Env, userID uint, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		effect := env.Deps.Notifications.Create(context.Background(), services.CreateNotificationInput{
			UserID:  userID,
			Title:   fmt.Sprintf("Notice %d", i),
			Message: "Road repair schedule updated",
		})
		require.True(t, effect.Recorded())
	}
}

type unreadPayload struct {
	Success       bool                  `json:"success"`
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
	Count         int64                 `json:"count"`
	Updated       int64                 `json:"updated"`
}

func decodeUnread(t *testing.T, body []byte) unreadPayload {
	t.Helper()
	var payload unreadPayload
	require.NoError(t, json.Unmarshal(body, &payload), string(body))
	return payload
}

func TestNotificationActionsRoundTrip(t *testing.T) {
	env := testutil.NewEnv(t)
	user, token := env.LoginAs("citizen@lgu.test", models.RoleCitizen)
	seedNotifications(t, env, user.ID, 3)

	w := env.Request(http.MethodGet, "/api/notifications?action=get_count", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 3, decodeUnread(t, w.Body.Bytes()).Count)

	w = env.Request(http.MethodGet, "/api/notifications?action=get_unread&limit=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	unread := decodeUnread(t, w.Body.Bytes())
	require.True(t, unread.Success)
	require.Len(t, unread.Notifications, 2)
	require.EqualValues(t, 3, unread.UnreadCount)
	require.Equal(t, "Notice 3", unread.Notifications[0].Title)

	w = env.Request(http.MethodPost, "/api/notifications", map[string]any{
		"action":          "mark_read",
		"notification_id": unread.Notifications[0].ID,
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Already read.
	w = env.Request(http.MethodPost, "/api/notifications", map[string]any{
		"action":          "mark_read",
		"notification_id": unread.Notifications[0].ID,
	}, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodPost, "/api/notifications?action=mark_all_read", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 2, decodeUnread(t, w.Body.Bytes()).Updated)

	w = env.Request(http.MethodGet, "/api/notifications?action=get_count&user_id="+fmt.Sprint(user.ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Zero(t, decodeUnread(t, w.Body.Bytes()).Count)
}

func TestNotificationActionMethodAndValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.LoginAs("citizen@lgu.test", models.RoleCitizen)

	w := env.Request(http.MethodPost, "/api/notifications?action=get_count", nil, token)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = env.Request(http.MethodGet, "/api/notifications?action=mark_all_read", nil, token)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = env.Request(http.MethodGet, "/api/notifications?action=explode", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/notifications", map[string]any{"action": "mark_read"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env.ResetCookies()
	w = env.Request(http.MethodGet, "/api/notifications?action=get_count", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationOwnershipIsolation(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner@lgu.test", models.RoleCitizen)
	seedNotifications(t, env, owner.ID, 2)

	intruder, token := env.LoginAs("intruder@lgu.test", models.RoleCitizen)

	w := env.Request(http.MethodGet, fmt.Sprintf("/api/notifications?action=get_unread&user_id=%d", owner.ID), nil, token)
	require.Equal(t, http.StatusForbidden, w.Code)

	var denials int64
	require.NoError(t, env.DB.Model(&models.AuditLog{}).
		Where("action = ? AND user_id = ?", services.AuditUnauthorizedAccess, intruder.ID).
		Count(&denials).Error)
	require.EqualValues(t, 1, denials)

	// mark_all_read only touches the caller's own rows.
	w = env.Request(http.MethodPost, "/api/notifications?action=mark_all_read", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	count, err := env.Deps.Notifications.UnreadCount(context.Background(), owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	items, _, err := env.Deps.Notifications.ListForUser(context.Background(), owner.ID, 10, 0)
	require.NoError(t, err)
	w = env.Request(http.MethodDelete, fmt.Sprintf("/api/notifications/%d", items[0].ID), nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Administrators may address any user.
	_, adminToken := env.LoginAs("admin@lgu.test", models.RoleAdmin)
	w = env.Request(http.MethodGet, fmt.Sprintf("/api/notifications?action=get_count&user_id=%d", owner.ID), nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 2, decodeUnread(t, w.Body.Bytes()).Count)
}

func TestNotificationListAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	user, token := env.LoginAs("citizen@lgu.test", models.RoleCitizen)
	seedNotifications(t, env, user.ID, 3)

	w := env.Request(http.MethodGet, "/api/notifications/list?limit=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	require.EqualValues(t, 3, resp.Meta.Total)

	var items []models.Notification
	testutil.DecodeInto(t, resp.Data, &items)
	require.Len(t, items, 2)

	w = env.Request(http.MethodDelete, fmt.Sprintf("/api/notifications/%d", items[0].ID), nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodDelete, "/api/notifications/abc", nil, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminSendNotification(t *testing.T) {
	env := testutil.NewEnv(t)
	recipient := env.CreateUser("citizen@lgu.test", models.RoleCitizen)
	_, adminToken := env.LoginAs("admin@lgu.test", models.RoleAdmin)

	w := env.Request(http.MethodPost, "/api/admin/notifications", map[string]any{
		"user_id": recipient.ID,
		"title":   "Water interruption",
		"message": "Scheduled maintenance on Friday",
		"type":    "warning",
	}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	count, err := env.Deps.Notifications.UnreadCount(context.Background(), recipient.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	w = env.Request(http.MethodPost, "/api/admin/notifications", map[string]any{
		"user_id": 99999, "title": "x", "message": "y",
	}, adminToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodPost, "/api/admin/notifications", map[string]any{
		"user_id": recipient.ID, "title": "x", "message": "y", "type": "shouting",
	}, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	_, citizenToken := env.LoginAs("other@lgu.test", models.RoleCitizen)
	w = env.Request(http.MethodPost, "/api/admin/notifications", map[string]any{
		"user_id": recipient.ID, "title": "x", "message": "y",
	}, citizenToken)
	require.Equal(t, http.StatusForbidden, w.Code)
}
