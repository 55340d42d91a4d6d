package handlers

import (
	stdErrors "errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/permissions"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/response"
)

// AuthHandler manages login, logout, registration and the caller's own identity.
type AuthHandler struct {
	auth   *services.AuthService
	users  *services.UserService
	cookie middleware.SessionCookie
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, users *services.UserService, cookie middleware.SessionCookie) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, cookie: cookie}
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Next     string `json:"next" form:"next"`
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,password,max=72"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32,phone"`
	Barangay  string `json:"barangay" validate:"omitempty,max=100"`
	Role      string `json:"role" validate:"omitempty,max=32"`
}

// POST /login and POST /api/auth/login
//
// Browsers are redirected to their landing page, or back to the login page
// with an error message. API clients get a JSON envelope and a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	wantsJSON := middleware.WantsJSON(c)

	var req loginRequest
	if err := bindRequest(c, &req); err != nil {
		h.loginFailed(c, wantsJSON, err)
		return
	}

	result, err := h.auth.Login(requestContext(c), services.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		IssueToken: wantsJSON,
	})
	if err != nil {
		h.loginFailed(c, wantsJSON, err)
		return
	}

	h.cookie.Set(c, result.Session.Token)
	landing := middleware.LandingPage(result.User.Role)

	if !wantsJSON {
		c.Redirect(http.StatusFound, safeRedirect(req.Next, landing))
		return
	}

	data := gin.H{
		"user":               result.User,
		"redirect":           landing,
		"csrf_token":         result.Session.CSRFToken,
		"session_expires_at": result.Session.ExpiresAt,
	}
	if result.AccessToken != "" {
		data["access_token"] = result.AccessToken
		data["token_type"] = "Bearer"
		data["expires_at"] = result.TokenExpiry
	}
	c.JSON(http.StatusOK, response.Response{
		Success: true,
		Message: "Login successful",
		Data:    data,
	})
}

func (h *AuthHandler) loginFailed(c *gin.Context, wantsJSON bool, err error) {
	var locked *services.LockedError
	if stdErrors.As(err, &locked) && locked.Remaining > 0 {
		c.Header("Retry-After", strconv.FormatInt(locked.Remaining, 10))
	}

	if wantsJSON {
		respondError(c, err)
		return
	}

	appErr := translateError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(requestContext(c), "handlers").Error("login failed", zap.Error(err))
	}
	c.Redirect(http.StatusFound, middleware.DefaultLoginPath+"?error="+url.QueryEscape(appErr.Message))
}

// POST /logout and POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if id, ok := middleware.CurrentIdentity(c); ok {
		if err := h.auth.Logout(requestContext(c), id.SessionID); err != nil {
			logger.FromContext(requestContext(c), "handlers").Warn("logout", zap.String("session_id", id.SessionID), zap.Error(err))
		}
	}
	h.cookie.Clear(c)

	if middleware.WantsJSON(c) {
		response.Message(c, http.StatusOK, "Logged out")
		return
	}
	c.Redirect(http.StatusFound, middleware.DefaultLoginPath)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(requestContext(c), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":         user,
		"capabilities": permissions.ForRole(user.Role),
		"landing_page": middleware.LandingPage(user.Role),
		"session_id":   id.SessionID,
	})
}

// GET /api/auth/csrf
func (h *AuthHandler) CSRF(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"csrf_token": middleware.CSRFToken(c)})
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, _, err := h.users.Register(requestContext(c), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Barangay:  req.Barangay,
		Role:      req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Response{
		Success: true,
		Message: "Registration received. Check your email to verify your account.",
		Data:    user,
	})
}

// GET /api/auth/verify?token=
func (h *AuthHandler) Verify(c *gin.Context) {
	user, err := h.users.VerifyEmail(requestContext(c), c.Query("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Email verified. You can now log in."
	if user.Status != models.UserStatusActive {
		message = "Email verified. An administrator will activate your account."
	}
	c.JSON(http.StatusOK, response.Response{
		Success: true,
		Message: message,
		Data:    user,
	})
}

// safeRedirect only follows same-site absolute paths.
func safeRedirect(next, fallback string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if next == middleware.DefaultLoginPath || strings.HasPrefix(next, middleware.DefaultLoginPath+"?") {
		return fallback
	}
	return next
}
