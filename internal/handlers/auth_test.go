package handlers_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/handlers/testutil"
	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/internal/models"
	sharedtestutil "github.com/lguportal/portal/internal/testutil"
)

func TestLoginIssuesSessionAndBearerToken(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("officer@lgu.test", models.RoleLGUOfficer)

	result := env.Login("officer@lgu.test", sharedtestutil.DefaultPassword)
	require.Equal(t, "Bearer", result.TokenType)
	require.Equal(t, "/lgu-officer/dashboard", result.Redirect)
	require.NotEmpty(t, result.CSRFToken)
	require.NotNil(t, env.Cookie(middleware.DefaultSessionCookieName))

	// bearer
	w := env.Request(http.MethodGet, "/api/auth/me", nil, result.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me struct {
		User         testutil.UserPayload `json:"user"`
		Capabilities []string             `json:"capabilities"`
		LandingPage  string               `json:"landing_page"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &me)
	require.Equal(t, "officer@lgu.test", me.User.Email)
	require.Equal(t, "/lgu-officer/dashboard", me.LandingPage)
	require.Contains(t, me.Capabilities, "report.manage")

	// cookie
	w = env.Request(http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginWrongPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("citizen@lgu.test", models.RoleCitizen)

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": "not-the-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "INVALID_CREDENTIALS", resp.Code)
	require.Nil(t, env.Cookie(middleware.DefaultSessionCookieName))

	var failures int64
	require.NoError(t, env.DB.Model(&models.LoginAttempt{}).Where("email = ? AND success = ?", user.Email, false).Count(&failures).Error)
	require.EqualValues(t, 1, failures)
}

func TestLoginPendingAccountIsRejected(t *testing.T) {
	env := testutil.NewEnv(t)
	sharedtestutil.MustCreateUser(t, env.DB, "pending@lgu.test", sharedtestutil.WithStatus(models.UserStatusPending))

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "pending@lgu.test",
		"password": sharedtestutil.DefaultPassword,
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "ACCOUNT_INACTIVE", testutil.DecodeResponse(t, w).Code)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("target@lgu.test", models.RoleCitizen)

	for i := 0; i < 5; i++ {
		w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    user.Email,
			"password": "wrong",
		}, "")
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": sharedtestutil.DefaultPassword,
	}, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "ACCOUNT_LOCKED", resp.Code)
	require.Contains(t, resp.Error, "minute")
}

func TestBrowserLoginRedirects(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("engineer@lgu.test", models.RoleEngineer)

	form := url.Values{}
	form.Set("email", "engineer@lgu.test")
	form.Set("password", "wrong")
	form.Set(middleware.CSRFFormField, env.CSRFToken())
	w := env.Form("/login", form)
	require.Equal(t, http.StatusFound, w.Code)
	require.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login?error="), w.Header().Get("Location"))

	form.Set("password", sharedtestutil.DefaultPassword)
	w = env.Form("/login", form)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/engineer/dashboard", w.Header().Get("Location"))

	env.ResetCookies()
	form.Set("next", "//evil.example/phish")
	form.Set(middleware.CSRFFormField, env.CSRFToken())
	w = env.Form("/login", form)
	require.Equal(t, "/engineer/dashboard", w.Header().Get("Location"))

	env.ResetCookies()
	form.Set("next", "/api/reports/mine")
	form.Set(middleware.CSRFFormField, env.CSRFToken())
	w = env.Form("/login", form)
	require.Equal(t, "/api/reports/mine", w.Header().Get("Location"))
}

func TestLoginRequiresCSRFToken(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("citizen@lgu.test", models.RoleCitizen)

	form := url.Values{}
	form.Set("email", "citizen@lgu.test")
	form.Set("password", sharedtestutil.DefaultPassword)
	w := env.Form("/login", form)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "CSRF_TOKEN_INVALID", testutil.DecodeResponse(t, w).Code)
}

func TestLogoutEndsSession(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("staff@lgu.test", models.RoleStaff)
	result := env.Login("staff@lgu.test", sharedtestutil.DefaultPassword)

	w := env.Request(http.MethodPost, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Nil(t, env.Cookie(middleware.DefaultSessionCookieName))

	// The bearer token is bound to the ended session.
	w = env.Request(http.MethodGet, "/api/auth/me", nil, result.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var logouts int64
	require.NoError(t, env.DB.Model(&models.AuditLog{}).Where("action = ?", "logout").Count(&logouts).Error)
	require.EqualValues(t, 1, logouts)
}

func TestRegisterAndVerify(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":      "Juan@Example.com",
		"password":   "Password123",
		"first_name": "Juan",
		"last_name":  "Dela Cruz",
		"barangay":   "San Roque",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &registered)
	require.Equal(t, "juan@example.com", registered.Email)
	require.Equal(t, "pending", registered.Status)
	require.NotContains(t, w.Body.String(), "token=")

	// Pending accounts cannot sign in.
	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "juan@example.com", "password": "Password123",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email": "juan@example.com", "password": "Password123", "first_name": "J", "last_name": "D",
	}, "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	token := env.Outbox.VerificationToken(t)
	w = env.Request(http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, w).Message, "You can now log in")

	w = env.Request(http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	env.Login("juan@example.com", "Password123")
}

func TestRegisterValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":      "not-an-email",
		"password":   "short",
		"first_name": "A",
		"last_name":  "B",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "BAD_REQUEST", testutil.DecodeResponse(t, w).Code)

	w = env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":      "admin-wannabe@example.com",
		"password":   "Password123",
		"first_name": "A",
		"last_name":  "B",
		"role":       "admin",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestCSRFEndpointAndCookieSessionProtection(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("citizen@lgu.test", models.RoleCitizen)
	result := env.Login("citizen@lgu.test", sharedtestutil.DefaultPassword)

	w := env.Request(http.MethodGet, "/api/auth/csrf", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		CSRFToken string `json:"csrf_token"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.Equal(t, result.CSRFToken, payload.CSRFToken)

	req, err := http.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(`{"category":"road","title":"Pothole","location":"Rizal St"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CSRFHeaderName, "forged")
	w = env.Do(req, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "CSRF_TOKEN_INVALID", testutil.DecodeResponse(t, w).Code)

	// Bearer callers carry no ambient credentials and skip the check.
	w = env.Request(http.MethodPost, "/api/reports", map[string]string{
		"category": "road", "title": "Pothole", "location": "Rizal St",
	}, result.AccessToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
