package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/logger"
)

// LockoutPolicy configures the failed-login lockout and suspicious-activity heuristic.
type LockoutPolicy struct {
	Threshold        int
	Window           time.Duration
	SuspiciousIPs    int
	SuspiciousWindow time.Duration
	// FailClosed reports accounts as locked and suspicious when the attempt
	// store cannot be read. The default is to fail open.
	FailClosed bool
}

// DefaultLockoutPolicy returns five failures in fifteen minutes and more than
// three distinct IPs within an hour.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold:        5,
		Window:           15 * time.Minute,
		SuspiciousIPs:    3,
		SuspiciousWindow: time.Hour,
	}
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	d := DefaultLockoutPolicy()
	if p.Threshold <= 0 {
		p.Threshold = d.Threshold
	}
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.SuspiciousIPs <= 0 {
		p.SuspiciousIPs = d.SuspiciousIPs
	}
	if p.SuspiciousWindow <= 0 {
		p.SuspiciousWindow = d.SuspiciousWindow
	}
	return p
}

// LoginAttemptInput describes one login attempt.
type LoginAttemptInput struct {
	Email     string
	IPAddress string
	UserAgent string
	Success   bool
}

// LoginAttemptService maintains the append-only login attempt ledger and
// answers lockout queries from it. Queries are advisory reads; the
// check-then-record sequence is not atomic.
type LoginAttemptService struct {
	db     *gorm.DB
	policy LockoutPolicy
	now    func() time.Time
}

// NewLoginAttemptService constructs a LoginAttemptService.
func NewLoginAttemptService(db *gorm.DB, policy LockoutPolicy, clock func() time.Time) (*LoginAttemptService, error) {
	if db == nil {
		return nil, errors.New("login attempt service: db is required")
	}
	return &LoginAttemptService{db: db, policy: policy.withDefaults(), now: utcClock(clock)}, nil
}

// Policy returns the effective policy.
func (s *LoginAttemptService) Policy() LockoutPolicy {
	return s.policy
}

// Record appends an attempt.
func (s *LoginAttemptService) Record(ctx context.Context, input LoginAttemptInput) Effect {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return failed(ctx, "login_attempt", errors.New("login attempt service: email is required"))
	}

	row := models.LoginAttempt{
		Email:     email,
		IPAddress: strings.TrimSpace(input.IPAddress),
		UserAgent: strings.TrimSpace(input.UserAgent),
		Success:   input.Success,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return failed(ctx, "login_attempt", err)
	}
	return recorded()
}

// IsLocked reports whether email has at least Threshold failures inside the trailing window.
func (s *LoginAttemptService) IsLocked(ctx context.Context, email string) bool {
	ctx = ensureContext(ctx)

	count, err := s.recentFailures(ctx, normaliseEmail(email))
	if err != nil {
		return s.onReadError(ctx, "lockout", err)
	}
	return count >= int64(s.policy.Threshold)
}

// RemainingLockout returns the time until the most recent failure leaves the
// window, floored at zero. It is zero when the account is not locked.
func (s *LoginAttemptService) RemainingLockout(ctx context.Context, email string) time.Duration {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)

	if !s.IsLocked(ctx, email) {
		return 0
	}

	var last models.LoginAttempt
	err := s.db.WithContext(ctx).
		Where("email = ? AND success = ?", email, false).
		Order("created_at DESC").
		Take(&last).Error
	if err != nil {
		if s.policy.FailClosed && !errors.Is(err, gorm.ErrRecordNotFound) {
			return s.policy.Window
		}
		return 0
	}

	remaining := last.CreatedAt.Add(s.policy.Window).Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsSuspicious reports whether more than SuspiciousIPs distinct addresses
// attempted to log in as email within SuspiciousWindow. It is a signal only.
func (s *LoginAttemptService) IsSuspicious(ctx context.Context, email string) bool {
	ctx = ensureContext(ctx)

	var distinct int64
	err := s.db.WithContext(ctx).
		Model(&models.LoginAttempt{}).
		Where("email = ? AND created_at >= ?", normaliseEmail(email), s.now().Add(-s.policy.SuspiciousWindow)).
		Distinct("ip_address").
		Count(&distinct).Error
	if err != nil {
		return s.onReadError(ctx, "suspicious", err)
	}
	return distinct > int64(s.policy.SuspiciousIPs)
}

// CleanupOlderThan deletes attempts older than retention.
func (s *LoginAttemptService) CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	if retention <= 0 {
		return 0, errors.New("login attempt service: retention must be positive")
	}

	result := s.db.WithContext(ctx).
		Where("created_at < ?", s.now().Add(-retention)).
		Delete(&models.LoginAttempt{})
	if result.Error != nil {
		return 0, fmt.Errorf("login attempt service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *LoginAttemptService) recentFailures(ctx context.Context, email string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.LoginAttempt{}).
		Where("email = ? AND success = ? AND created_at >= ?", email, false, s.now().Add(-s.policy.Window)).
		Count(&count).Error
	return count, err
}

func (s *LoginAttemptService) onReadError(ctx context.Context, check string, err error) bool {
	logger.FromContext(ctx, "services").Warn("login attempt store unavailable",
		zap.String("check", check),
		zap.Bool("fail_closed", s.policy.FailClosed),
		zap.Error(err),
	)
	return s.policy.FailClosed
}
