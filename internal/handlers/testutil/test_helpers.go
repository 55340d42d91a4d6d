package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/api"
	"github.com/lguportal/portal/internal/app"
	dbtestutil "github.com/lguportal/portal/internal/database/testutil"
	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/internal/models"
	sharedtestutil "github.com/lguportal/portal/internal/testutil"
	"github.com/lguportal/portal/pkg/mail"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Deps   *api.Dependencies
	Router *gin.Engine
	Outbox *Outbox

	csrfToken string
	cookies   map[string]*http.Cookie
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := dbtestutil.MustOpenTestDB(t, dbtestutil.WithAutoMigrate())
	outbox := &Outbox{}

	deps, err := api.NewDependencies(api.Options{
		DB:     db,
		Config: TestConfig(),
		Mailer: outbox,
	})
	require.NoError(t, err)

	router, err := api.NewRouter(deps)
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Deps:    deps,
		Router:  router,
		Outbox:  outbox,
		cookies: map[string]*http.Cookie{},
	}
}

// TestConfig returns the configuration used by handler tests.
func TestConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Server.PublicURL = "http://portal.test"
	cfg.Server.RateLimit = app.RateLimitConfig{Requests: 1000, Window: time.Minute}
	cfg.Auth.JWT = app.JWTSettings{
		Secret: "test-suite-super-secret-key-32-bytes!!",
		Issuer: "test-suite",
		TTL:    time.Hour,
	}
	cfg.Auth.Session = app.SessionSettings{TTL: 24 * time.Hour, TokenLength: 48}
	cfg.Auth.Verification = app.VerificationSettings{BaseURL: "http://portal.test/api/auth/verify", TTL: 24 * time.Hour}
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	return cfg
}

// CreateUser inserts an active, verified user. Its password is sharedtestutil.DefaultPassword.
func (e *Env) CreateUser(email string, role models.Role) *models.User {
	e.T.Helper()
	return sharedtestutil.MustCreateUser(e.T, e.DB, email, sharedtestutil.WithRole(role))
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID     uint   `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// LoginResult bundles the data payload of POST /api/auth/login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	CSRFToken   string      `json:"csrf_token"`
	Redirect    string      `json:"redirect"`
	User        UserPayload `json:"user"`
}

// Login signs in through the JSON API. The session cookie and CSRF token are
// kept so that later cookie requests (empty token) act as that user.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.Equal(e.T, strings.ToLower(email), result.User.Email)

	e.csrfToken = result.CSRFToken
	return result
}

// LoginAs creates a user with role and returns its bearer token.
func (e *Env) LoginAs(email string, role models.Role) (*models.User, string) {
	e.T.Helper()
	user := e.CreateUser(email, role)
	return user, e.Login(email, sharedtestutil.DefaultPassword).AccessToken
}

// ResetCookies forgets the browser state collected so far.
func (e *Env) ResetCookies() {
	e.cookies = map[string]*http.Cookie{}
	e.csrfToken = ""
}

// Cookie returns the stored cookie with name, or nil.
func (e *Env) Cookie(name string) *http.Cookie {
	return e.cookies[name]
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
		Total  int64 `json:"total"`
	} `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// DecodeBody unmarshals the whole response body. Used for flat envelopes.
func DecodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// Request executes a JSON request against the test router. A non-empty token
// is sent as a bearer credential; otherwise the stored browser cookies and
// CSRF token are attached.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req, token)
}

// Form posts url-encoded values the way a browser login form does.
func (e *Env) Form(path string, values url.Values) *httptest.ResponseRecorder {
	e.T.Helper()

	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	return e.Do(req, "")
}

// Do sends a prepared request, applying credentials as described on Request.
func (e *Env) Do(req *http.Request, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		if requiresCSRFAttestation(req.Method) {
			e.ensureCSRFToken()
			if req.Header.Get(middleware.CSRFHeaderName) == "" && req.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
				req.Header.Set(middleware.CSRFHeaderName, e.csrfToken)
			}
		}
		for _, cookie := range e.cookies {
			req.AddCookie(cookie)
		}
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	if token == "" {
		e.capture(w.Result())
	}
	return w
}

// CSRFToken returns the token the stored browser state must echo.
func (e *Env) CSRFToken() string {
	e.ensureCSRFToken()
	return e.csrfToken
}

func (e *Env) ensureCSRFToken() {
	if e.csrfToken != "" {
		return
	}
	req, err := http.NewRequest(http.MethodGet, "/api/auth/csrf", nil)
	require.NoError(e.T, err)
	for _, cookie := range e.cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	e.capture(w.Result())
}

func (e *Env) capture(resp *http.Response) {
	if resp == nil {
		return
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(middleware.CSRFHeaderName); token != "" {
		e.csrfToken = token
	}
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = &http.Cookie{Name: c.Name, Value: c.Value}
	}
}

func requiresCSRFAttestation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Outbox records outgoing mail.
type Outbox struct {
	mu       sync.Mutex
	messages []mail.Message
}

// Send implements mail.Mailer.
func (o *Outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of the recorded mail.
func (o *Outbox) Messages() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.messages...)
}

// VerificationToken extracts the token from the latest verification mail.
func (o *Outbox) VerificationToken(t *testing.T) string {
	t.Helper()
	messages := o.Messages()
	require.NotEmpty(t, messages)

	body := messages[len(messages)-1].Body
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0, body)
	token := body[idx+len("token="):]
	if end := strings.IndexAny(token, "\n\r "); end >= 0 {
		token = token[:end]
	}
	return token
}
