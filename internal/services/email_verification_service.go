package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/crypto"
	"github.com/lguportal/portal/pkg/mail"
)

const (
	defaultVerificationExpiry     = 24 * time.Hour
	defaultVerificationTokenBytes = 32
)

var (
	// ErrVerificationNotFound indicates the token does not exist.
	ErrVerificationNotFound = errors.New("email verification: not found")
	// ErrVerificationExpired indicates the verification token has expired.
	ErrVerificationExpired = errors.New("email verification: expired")
	// ErrVerificationUsed signals that the verification token has already been consumed.
	ErrVerificationUsed = errors.New("email verification: already used")
)

// VerificationOption customises the EmailVerificationService.
type VerificationOption func(*EmailVerificationService)

// WithVerificationBaseURL sets the base URL used in verification links.
func WithVerificationBaseURL(url string) VerificationOption {
	return func(s *EmailVerificationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithVerificationExpiry overrides the token lifetime.
func WithVerificationExpiry(d time.Duration) VerificationOption {
	return func(s *EmailVerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *EmailVerificationService) {
		if clock != nil {
			s.now = utcClock(clock)
		}
	}
}

// EmailVerificationService issues and consumes registration verification tokens.
// Only the SHA-256 of a token is stored.
type EmailVerificationService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	now     func() time.Time
}

// NewEmailVerificationService constructs a verification service with the provided dependencies.
func NewEmailVerificationService(db *gorm.DB, mailer mail.Mailer, opts ...VerificationOption) (*EmailVerificationService, error) {
	if db == nil {
		return nil, errors.New("email verification service: db is required")
	}

	service := &EmailVerificationService{
		db:     db,
		mailer: mailer,
		expiry: defaultVerificationExpiry,
		now:    utcClock(nil),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateToken replaces any pending token for userID and mails the verification link.
// It returns the raw token and the link.
func (s *EmailVerificationService) CreateToken(ctx context.Context, userID uint, email string) (string, string, error) {
	ctx = ensureContext(ctx)
	email = normaliseEmail(email)
	if userID == 0 {
		return "", "", errors.New("email verification service: user id is required")
	}
	if email == "" {
		return "", "", errors.New("email verification service: email is required")
	}

	token, err := crypto.GenerateToken(defaultVerificationTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("email verification service: generate token: %w", err)
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND verified_at IS NULL", userID).
			Delete(&models.EmailVerification{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.EmailVerification{
			BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
			UserID:    userID,
			TokenHash: crypto.HashToken(token),
			ExpiresAt: now.Add(s.expiry),
		}).Error
	})
	if err != nil {
		return "", "", fmt.Errorf("email verification service: store token: %w", err)
	}

	link := s.verificationLink(token)
	if s.mailer != nil {
		msg := mail.Message{
			To:      []string{email},
			Subject: "Confirm your LGU Portal account",
			Body:    verificationBody(link, s.expiry),
		}
		if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			return "", "", fmt.Errorf("email verification service: send email: %w", err)
		}
	}
	return token, link, nil
}

// VerifyToken validates and consumes a verification token.
func (s *EmailVerificationService) VerifyToken(ctx context.Context, token string) (*models.EmailVerification, error) {
	ctx = ensureContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrVerificationNotFound
	}

	var verification models.EmailVerification
	err := s.db.WithContext(ctx).Where("token_hash = ?", crypto.HashToken(token)).Take(&verification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("email verification service: find token: %w", err)
	}

	now := s.now()
	if verification.VerifiedAt != nil {
		return nil, ErrVerificationUsed
	}
	if !verification.ExpiresAt.After(now) {
		return nil, ErrVerificationExpired
	}

	result := s.db.WithContext(ctx).Model(&models.EmailVerification{}).
		Where("id = ? AND verified_at IS NULL", verification.ID).
		Updates(map[string]any{"verified_at": now, "updated_at": now})
	if result.Error != nil {
		return nil, fmt.Errorf("email verification service: mark verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrVerificationUsed
	}

	verification.VerifiedAt = &now
	return &verification, nil
}

// CleanupExpired removes unconsumed tokens past their expiry.
func (s *EmailVerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("verified_at IS NULL AND expires_at <= ?", s.now()).
		Delete(&models.EmailVerification{})
	if result.Error != nil {
		return 0, fmt.Errorf("email verification service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *EmailVerificationService) verificationLink(token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s?token=%s", s.baseURL, token)
}

func verificationBody(link string, expiry time.Duration) string {
	return fmt.Sprintf("Welcome to the LGU Portal.\n\nConfirm your email address by opening the link below within %s:\n%s\n\nIf you did not register, you can ignore this message.\n", expiry, link)
}
