package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/crypto"
	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/metrics"
)

const (
	// DefaultSessionTTL is the sliding lifetime of a browser session.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultSessionCacheTTL bounds how long a cached row may be served.
	DefaultSessionCacheTTL = 5 * time.Minute

	defaultTokenLength = 48
	csrfTokenLength    = 32
)

var (
	// ErrSessionNotFound indicates that no session matches the provided token or identifier.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionInactive marks a session that has been terminated.
	ErrSessionInactive = errors.New("session: inactive")
	// ErrSessionExpired signals that a session has passed its expiry.
	ErrSessionExpired = errors.New("session: expired")
	// ErrSessionUserMismatch is returned when the session belongs to a different user.
	ErrSessionUserMismatch = errors.New("session: user mismatch")
	// ErrSessionInvalidToken is returned when the supplied token or id is empty.
	ErrSessionInvalidToken = errors.New("session: invalid token")
)

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TTL         time.Duration
	TokenLength int
	CacheTTL    time.Duration
	Clock       func() time.Time
	Cache       SessionCache
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

// SessionService manages the lifecycle of browser and API sessions.
// Sessions move from active to expired (detected lazily) or terminated and
// never become active again.
type SessionService struct {
	db       *gorm.DB
	ttl      time.Duration
	tokenLen int
	cacheTTL time.Duration
	now      func() time.Time
	cache    SessionCache
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	length := cfg.TokenLength
	if length <= 0 {
		length = defaultTokenLength
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultSessionCacheTTL
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:       db,
		ttl:      ttl,
		tokenLen: length,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return clock().UTC() },
		cache:    cfg.Cache,
	}, nil
}

// TTL returns the configured sliding session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// CreateSession inserts a new active session for userID.
func (s *SessionService) CreateSession(ctx context.Context, userID uint, meta SessionMetadata) (*models.Session, error) {
	if userID == 0 {
		return nil, errors.New("session service: user id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return nil, fmt.Errorf("session service: generate token: %w", err)
	}
	csrf, err := crypto.GenerateToken(csrfTokenLength)
	if err != nil {
		return nil, fmt.Errorf("session service: generate csrf token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		Token:      token,
		UserID:     userID,
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		CSRFToken:  csrf,
		IsActive:   true,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
		LastSeenAt: now,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	s.cacheSet(ctx, session)
	s.syncGauge(ctx)
	return session, nil
}

// CheckSession reports whether token names an active, unexpired session owned
// by userID. A zero userID skips the ownership check. It never mutates state.
func (s *SessionService) CheckSession(ctx context.Context, token string, userID uint) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionInvalidToken
	}

	session, err := s.load(ctx, token, "token = ?", func(c SessionCache) (*models.Session, error) {
		return c.GetByToken(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return session, s.evaluate(session, userID)
}

// CheckSessionByID is CheckSession keyed by session id, used by bearer tokens.
func (s *SessionService) CheckSessionByID(ctx context.Context, id string, userID uint) (*models.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionInvalidToken
	}

	session, err := s.load(ctx, id, "id = ?", func(c SessionCache) (*models.Session, error) {
		return c.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return session, s.evaluate(session, userID)
}

// ValidateSession checks the session and terminates it when the check fails.
func (s *SessionService) ValidateSession(ctx context.Context, token string, userID uint) bool {
	if _, err := s.CheckSession(ctx, token, userID); err != nil {
		if termErr := s.TerminateSession(ctx, token); termErr != nil && !errors.Is(termErr, ErrSessionInvalidToken) {
			logger.FromContext(ctx, "auth").Warn("terminate invalid session", zap.Error(termErr))
		}
		return false
	}
	return true
}

// RefreshSession slides the expiry of an active session to now + TTL.
func (s *SessionService) RefreshSession(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrSessionInvalidToken
	}
	return s.refresh(ctx, "token = ?", token)
}

// RefreshSessionByID is RefreshSession keyed by session id, used by bearer tokens.
func (s *SessionService) RefreshSessionByID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionInvalidToken
	}
	return s.refresh(ctx, "id = ?", id)
}

// TerminateSession deactivates the session identified by token. Terminating an
// already inactive or unknown session is not an error.
func (s *SessionService) TerminateSession(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrSessionInvalidToken
	}
	return s.terminate(ctx, "token = ?", token)
}

// TerminateSessionByID deactivates the session identified by id.
func (s *SessionService) TerminateSessionByID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrSessionInvalidToken
	}
	return s.terminate(ctx, "id = ?", id)
}

// TerminateUserSessions deactivates every active session of userID.
func (s *SessionService) TerminateUserSessions(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrSessionInvalidToken
	}

	var sessions []models.Session
	if s.cache != nil {
		if err := s.db.WithContext(ctx).
			Select("id", "token").
			Where("user_id = ? AND is_active = ?", userID, true).
			Find(&sessions).Error; err != nil {
			logger.FromContext(ctx, "auth").Warn("list sessions for cache eviction failed",
				zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]any{"is_active": false, "ended_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: terminate user sessions: %w", result.Error)
	}

	for i := range sessions {
		s.cacheDelete(ctx, &sessions[i])
	}
	s.syncGauge(ctx)
	return result.RowsAffected, nil
}

// ListActiveForUser returns the active, unexpired sessions of userID, most recently used first.
func (s *SessionService) ListActiveForUser(ctx context.Context, userID uint) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, s.now()).
		Order("last_seen_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session service: list sessions: %w", err)
	}
	return sessions, nil
}

// CleanupExpired deletes expired and terminated sessions and returns the number removed.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()

	var doomed []models.Session
	if s.cache != nil {
		if err := s.db.WithContext(ctx).
			Select("id", "token").
			Where("expires_at <= ? OR is_active = ?", now, false).
			Find(&doomed).Error; err != nil {
			logger.FromContext(ctx, "auth").Warn("list expired sessions for cache eviction failed", zap.Error(err))
		}
	}

	result := s.db.WithContext(ctx).
		Where("expires_at <= ? OR is_active = ?", now, false).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}

	for i := range doomed {
		s.cacheDelete(ctx, &doomed[i])
	}
	s.syncGauge(ctx)
	return result.RowsAffected, nil
}

// SyncActiveSessions sets the active session gauge from the count of active,
// unexpired rows and returns that count.
func (s *SessionService) SyncActiveSessions(ctx context.Context) (int64, error) {
	var active int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("is_active = ? AND expires_at > ?", true, s.now()).
		Count(&active).Error; err != nil {
		return 0, fmt.Errorf("session service: count active sessions: %w", err)
	}
	metrics.ActiveSessions.Set(float64(active))
	return active, nil
}

func (s *SessionService) syncGauge(ctx context.Context) {
	if _, err := s.SyncActiveSessions(ctx); err != nil {
		logger.FromContext(ctx, "auth").Warn("sync active session gauge", zap.Error(err))
	}
}

func (s *SessionService) refresh(ctx context.Context, where, key string) error {
	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where(where+" AND is_active = ?", key, true).
		Updates(map[string]any{
			"expires_at":   now.Add(s.ttl),
			"last_seen_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("session service: refresh session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}

	if s.cache != nil {
		var session models.Session
		if err := s.db.WithContext(ctx).Where(where, key).Take(&session).Error; err != nil {
			logger.FromContext(ctx, "auth").Warn("reload refreshed session for cache failed", zap.Error(err))
		} else {
			s.cacheSet(ctx, &session)
		}
	}
	return nil
}

func (s *SessionService) load(ctx context.Context, key, where string, fromCache func(SessionCache) (*models.Session, error)) (*models.Session, error) {
	if s.cache != nil {
		cached, err := fromCache(s.cache)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil && !errors.Is(err, errSessionCacheMiss) {
			logger.FromContext(ctx, "auth").Debug("session cache read failed", zap.Error(err))
		}
	}

	var session models.Session
	err := s.db.WithContext(ctx).Where(where, key).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}
	if session.IsActive {
		s.cacheSet(ctx, &session)
	}
	return &session, nil
}

func (s *SessionService) evaluate(session *models.Session, userID uint) error {
	switch {
	case userID != 0 && session.UserID != userID:
		return ErrSessionUserMismatch
	case !session.IsActive:
		return ErrSessionInactive
	case !session.ExpiresAt.After(s.now()):
		return ErrSessionExpired
	}
	return nil
}

func (s *SessionService) terminate(ctx context.Context, where, key string) error {
	var session models.Session
	err := s.db.WithContext(ctx).Select("id", "token", "is_active").Where(where, key).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session service: find session: %w", err)
	}

	s.cacheDelete(ctx, &session)
	if !session.IsActive {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND is_active = ?", session.ID, true).
		Updates(map[string]any{"is_active": false, "ended_at": s.now()})
	if result.Error != nil {
		return fmt.Errorf("session service: terminate session: %w", result.Error)
	}
	s.syncGauge(ctx)
	return nil
}

func (s *SessionService) cacheSet(ctx context.Context, session *models.Session) {
	if s.cache == nil {
		return
	}
	ttl := s.cacheTTL
	if remaining := session.ExpiresAt.Sub(s.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, session, ttl); err != nil {
		logger.FromContext(ctx, "auth").Debug("session cache write failed", zap.Error(err))
	}
}

func (s *SessionService) cacheDelete(ctx context.Context, session *models.Session) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, session); err != nil {
		logger.FromContext(ctx, "auth").Warn("session cache delete failed", zap.Error(err))
	}
}
