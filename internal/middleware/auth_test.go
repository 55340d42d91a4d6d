package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/auth"
	dbtestutil "github.com/lguportal/portal/internal/database/testutil"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/internal/testutil"
)

type sessionFixture struct {
	db       *gorm.DB
	clock    *testutil.Clock
	sessions *auth.SessionService
	authSvc  *services.AuthService
	router   *gin.Engine
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())
	clock := testutil.NewClock(time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC))

	sessions, err := auth.NewSessionService(db, auth.SessionConfig{Clock: clock.Now})
	require.NoError(t, err)
	jwtSvc, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Clock: clock.Now})
	require.NoError(t, err)
	attempts, err := services.NewLoginAttemptService(db, services.DefaultLockoutPolicy(), clock.Now)
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(services.AuthServiceDeps{
		DB:       db,
		Sessions: sessions,
		JWT:      jwtSvc,
		Attempts: attempts,
		Clock:    clock.Now,
	})
	require.NoError(t, err)

	r := gin.New()
	r.Use(LoadSession(authSvc, sessions, DefaultSessionCookie()))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role, "bearer": id.ViaBearer})
	})

	return &sessionFixture{db: db, clock: clock, sessions: sessions, authSvc: authSvc, router: r}
}

func (f *sessionFixture) get(cookie *http.Cookie, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestLoadSessionFromCookieRefreshesExpiry(t *testing.T) {
	f := newSessionFixture(t)
	user := testutil.MustCreateUser(t, f.db, "citizen@example.com")

	result, err := f.authSvc.Login(context.Background(), services.LoginInput{Email: user.Email, Password: testutil.DefaultPassword})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Hour)
	w := f.get(&http.Cookie{Name: DefaultSessionCookieName, Value: result.Session.Token}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"role":"citizen"`)

	refreshed := findCookie(w.Result().Cookies(), DefaultSessionCookieName)
	require.NotNil(t, refreshed)
	require.True(t, refreshed.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, refreshed.SameSite)

	// Without the refresh the session would have lapsed at +24h.
	f.clock.Advance(10 * time.Hour)
	_, err = f.sessions.CheckSession(context.Background(), result.Session.Token, user.ID)
	require.NoError(t, err)
}

func TestLoadSessionTerminatesInvalidSession(t *testing.T) {
	f := newSessionFixture(t)
	user := testutil.MustCreateUser(t, f.db, "citizen@example.com")

	session, err := f.sessions.CreateSession(context.Background(), user.ID, auth.SessionMetadata{})
	require.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	w := f.get(&http.Cookie{Name: DefaultSessionCookieName, Value: session.Token}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"anonymous":true`)

	cleared := findCookie(w.Result().Cookies(), DefaultSessionCookieName)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	var stored models.Session
	require.NoError(t, f.db.Take(&stored, "id = ?", session.ID).Error)
	require.False(t, stored.IsActive)
	require.NotNil(t, stored.EndedAt)

	w = f.get(&http.Cookie{Name: DefaultSessionCookieName, Value: "garbage"}, "")
	require.Contains(t, w.Body.String(), `"anonymous":true`)
}

func TestLoadSessionFromBearerToken(t *testing.T) {
	f := newSessionFixture(t)
	user := testutil.MustCreateUser(t, f.db, "eng@example.com", testutil.WithRole(models.RoleEngineer))

	result, err := f.authSvc.Login(context.Background(), services.LoginInput{Email: user.Email, Password: testutil.DefaultPassword, IssueToken: true})
	require.NoError(t, err)

	w := f.get(nil, result.AccessToken)
	require.Contains(t, w.Body.String(), `"bearer":true`)
	require.Contains(t, w.Body.String(), `"role":"engineer"`)

	w = f.get(nil, "not-a-jwt")
	require.Contains(t, w.Body.String(), `"anonymous":true`)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestLoadSessionBearerRefreshesExpiry(t *testing.T) {
	f := newSessionFixture(t)
	user := testutil.MustCreateUser(t, f.db, "api@example.com")

	result, err := f.authSvc.Login(context.Background(), services.LoginInput{Email: user.Email, Password: testutil.DefaultPassword, IssueToken: true})
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	w := f.get(nil, result.AccessToken)
	require.Contains(t, w.Body.String(), `"bearer":true`)
	require.Nil(t, findCookie(w.Result().Cookies(), DefaultSessionCookieName))

	// Past the original 24h expiry, inside the refreshed one.
	f.clock.Advance(23*time.Hour + 40*time.Minute)
	_, err = f.sessions.CheckSessionByID(context.Background(), result.Session.ID, user.ID)
	require.NoError(t, err)
}

type unreachableStore struct{}

func (unreachableStore) Authenticate(context.Context, string) (*services.Principal, error) {
	return nil, fmt.Errorf("session service: find session: %w", errors.New("connection refused"))
}

func (unreachableStore) AuthenticateBearer(context.Context, string) (*services.Principal, error) {
	return nil, fmt.Errorf("auth service: load user: %w", errors.New("connection refused"))
}

type countingLifecycle struct {
	refreshed  int
	terminated int
}

func (l *countingLifecycle) RefreshSession(context.Context, string) error {
	l.refreshed++
	return nil
}

func (l *countingLifecycle) RefreshSessionByID(context.Context, string) error {
	l.refreshed++
	return nil
}

func (l *countingLifecycle) TerminateSession(context.Context, string) error {
	l.terminated++
	return nil
}

func TestLoadSessionStoreOutageKeepsCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lifecycle := &countingLifecycle{}

	reached := false
	r := gin.New()
	r.Use(LoadSession(unreachableStore{}, lifecycle, DefaultSessionCookie()))
	r.GET("/whoami", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookieName, Value: "still-valid"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	require.False(t, reached)
	require.Zero(t, lifecycle.terminated)
	require.Zero(t, lifecycle.refreshed)
	require.Nil(t, findCookie(w.Result().Cookies(), DefaultSessionCookieName))

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.value")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Empty(t, w.Header().Get("WWW-Authenticate"))
	require.False(t, reached)
}

func TestLoadSessionAnonymousWithoutCredentials(t *testing.T) {
	f := newSessionFixture(t)

	w := f.get(nil, "")
	require.Contains(t, w.Body.String(), `"anonymous":true`)
	require.Nil(t, findCookie(w.Result().Cookies(), DefaultSessionCookieName))
}
