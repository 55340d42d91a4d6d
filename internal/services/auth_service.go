package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/auth"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/crypto"
	apperrors "github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/metrics"
)

// LoginInput carries credentials and client metadata for a login.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
	// IssueToken requests a bearer access token bound to the new session.
	IssueToken bool
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	User        *models.User
	Session     *models.Session
	AccessToken string
	TokenExpiry time.Time
}

// Principal is the user and session behind an authenticated request.
type Principal struct {
	User    *models.User
	Session *models.Session
}

// AuthService implements login, logout and per-request authentication.
type AuthService struct {
	db            *gorm.DB
	sessions      *auth.SessionService
	jwt           *auth.JWTService
	attempts      *LoginAttemptService
	audit         *AuditService
	notifications *NotificationService
	now           func() time.Time
}

// AuthServiceDeps groups the collaborators of AuthService. JWT is optional.
type AuthServiceDeps struct {
	DB            *gorm.DB
	Sessions      *auth.SessionService
	JWT           *auth.JWTService
	Attempts      *LoginAttemptService
	Audit         *AuditService
	Notifications *NotificationService
	Clock         func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(deps AuthServiceDeps) (*AuthService, error) {
	switch {
	case deps.DB == nil:
		return nil, errors.New("auth service: db is required")
	case deps.Sessions == nil:
		return nil, errors.New("auth service: session service is required")
	case deps.Attempts == nil:
		return nil, errors.New("auth service: login attempt service is required")
	}
	return &AuthService{
		db:            deps.DB,
		sessions:      deps.Sessions,
		jwt:           deps.JWT,
		attempts:      deps.Attempts,
		audit:         deps.Audit,
		notifications: deps.Notifications,
		now:           utcClock(deps.Clock),
	}, nil
}

// Login authenticates credentials and opens a session. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	log := logger.FromContext(ctx, "auth")

	email := normaliseEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, apperrors.NewBadRequest("Email and password are required")
	}

	attempt := LoginAttemptInput{Email: email, IPAddress: input.IPAddress, UserAgent: input.UserAgent}

	if s.attempts.IsLocked(ctx, email) {
		remaining := s.attempts.RemainingLockout(ctx, email)
		s.rejectLogin(ctx, attempt, nil, "locked", "locked")
		return nil, &LockedError{Remaining: int64(math.Ceil(remaining.Seconds()))}
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.rejectLogin(ctx, attempt, nil, "unknown email", "failure")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: find user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, input.Password) {
		s.rejectLogin(ctx, attempt, &user.ID, "wrong password", "failure")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		s.rejectLogin(ctx, attempt, &user.ID, "account "+string(user.Status), "inactive")
		return nil, ErrAccountInactive
	}

	attempt.Success = true
	s.attempts.Record(ctx, attempt)

	session, err := s.sessions.CreateSession(ctx, user.ID, auth.SessionMetadata{
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: create session: %w", err)
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]any{"last_login_at": now, "last_login_ip": strings.TrimSpace(input.IPAddress)}).Error; err != nil {
		log.Warn("update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
		user.LastLoginIP = strings.TrimSpace(input.IPAddress)
	}

	userID := user.ID
	s.audit.Record(ctx, AuditEntry{
		UserID:    &userID,
		Action:    AuditLogin,
		Details:   "User logged in",
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	})

	if s.attempts.IsSuspicious(ctx, email) {
		log.Warn("suspicious login activity", zap.Uint("user_id", user.ID))
		s.notifications.Create(ctx, CreateNotificationInput{
			UserID:  user.ID,
			Title:   "Unusual sign-in activity",
			Message: "Your account was accessed from several different locations within the last hour. If this was not you, change your password.",
			Type:    string(models.NotificationWarning),
			Metadata: map[string]any{
				"ip_address": input.IPAddress,
			},
		})
	}

	result := &LoginResult{User: &user, Session: session}
	if input.IssueToken && s.jwt != nil {
		token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
			UserID:    user.ID,
			SessionID: session.ID,
			Role:      string(user.Role),
		})
		if err != nil {
			return nil, fmt.Errorf("auth service: issue access token: %w", err)
		}
		result.AccessToken = token
		result.TokenExpiry = now.Add(s.jwt.TTL())
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return result, nil
}

// Logout terminates the session and records the action for the caller in ctx.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	ctx = ensureContext(ctx)
	if err := s.sessions.TerminateSessionByID(ctx, sessionID); err != nil {
		return err
	}
	s.audit.LogActivity(ctx, AuditLogout, "User logged out")
	return nil
}

// Authenticate resolves a session cookie token to its principal. It does not
// mutate state; callers decide whether to refresh or terminate.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	session, err := s.sessions.CheckSession(ensureContext(ctx), token, 0)
	if err != nil {
		return nil, err
	}
	return s.principal(ctx, session)
}

// AuthenticateBearer resolves a bearer access token to its principal.
func (s *AuthService) AuthenticateBearer(ctx context.Context, bearer string) (*Principal, error) {
	if s.jwt == nil {
		return nil, auth.ErrSessionInvalidToken
	}
	claims, err := s.jwt.ValidateAccessToken(bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrSessionInvalidToken, err)
	}
	session, err := s.sessions.CheckSessionByID(ensureContext(ctx), claims.SessionID, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.principal(ctx, session)
}

// IsCredentialRejection reports whether err from Authenticate or
// AuthenticateBearer means the presented credential is no longer valid. Any
// other error means the check itself could not be completed.
func IsCredentialRejection(err error) bool {
	return errors.Is(err, auth.ErrSessionNotFound) ||
		errors.Is(err, auth.ErrSessionInactive) ||
		errors.Is(err, auth.ErrSessionExpired) ||
		errors.Is(err, auth.ErrSessionUserMismatch) ||
		errors.Is(err, auth.ErrSessionInvalidToken) ||
		errors.Is(err, ErrAccountInactive)
}

// Sessions exposes the underlying session service.
func (s *AuthService) Sessions() *auth.SessionService {
	return s.sessions
}

func (s *AuthService) principal(ctx context.Context, session *models.Session) (*Principal, error) {
	var user models.User
	err := s.db.WithContext(ensureContext(ctx)).Take(&user, session.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrSessionUserMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}
	if !user.IsActive() {
		return nil, ErrAccountInactive
	}
	return &Principal{User: &user, Session: session}, nil
}

// rejectLogin appends the failed attempt and its audit entry. Attempts
// against a locked account are recorded too so IsSuspicious keeps seeing them.
func (s *AuthService) rejectLogin(ctx context.Context, attempt LoginAttemptInput, userID *uint, reason, result string) {
	attempt.Success = false
	s.attempts.Record(ctx, attempt)
	s.audit.Record(ctx, AuditEntry{
		UserID:    userID,
		Action:    AuditLoginFailed,
		Details:   fmt.Sprintf("Failed login for %s: %s", attempt.Email, reason),
		IPAddress: attempt.IPAddress,
		UserAgent: attempt.UserAgent,
	})
	metrics.AuthAttempts.WithLabelValues(result).Inc()
}
