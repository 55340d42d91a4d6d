package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/pkg/metrics"
)

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID    uint
	Title     string
	Message   string
	Type      string
	ActionURL string
	Metadata  map[string]any
}

// NotificationService manages the per-user notification ledger.
type NotificationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, clock func() time.Time) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, now: utcClock(clock)}, nil
}

// Create inserts an unread notification. Failures are logged and reported
// through the returned Effect, never as an error.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) Effect {
	ctx = ensureContext(ctx)
	if s == nil {
		return skipped()
	}

	notificationType := models.ParseNotificationType(input.Type)
	result := "failed"
	defer func() {
		metrics.NotificationsCreated.WithLabelValues(string(notificationType), result).Inc()
	}()

	title := strings.TrimSpace(input.Title)
	if input.UserID == 0 {
		return failed(ctx, "notification", errors.New("notification service: user id is required"))
	}
	if title == "" {
		return failed(ctx, "notification", errors.New("notification service: title is required"))
	}

	row := models.Notification{
		UserID:    input.UserID,
		Title:     title,
		Message:   strings.TrimSpace(input.Message),
		Type:      notificationType,
		ActionURL: strings.TrimSpace(input.ActionURL),
		CreatedAt: s.now(),
	}
	if len(input.Metadata) > 0 {
		encoded, err := json.Marshal(input.Metadata)
		if err != nil {
			return failed(ctx, "notification", fmt.Errorf("notification service: marshal metadata: %w", err))
		}
		row.Metadata = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return failed(ctx, "notification", err, zap.Uint("user_id", input.UserID))
	}
	result = "created"
	return recorded()
}

// CreateNotification is the boolean form of Create.
func (s *NotificationService) CreateNotification(ctx context.Context, userID uint, title, message, notificationType string) bool {
	return s.Create(ctx, CreateNotificationInput{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notificationType,
	}).Recorded()
}

// UnreadForUser returns unread notifications newest first. limit defaults to
// 10 and is capped at 100.
func (s *NotificationService) UnreadForUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	var rows []models.Notification
	if err := s.unread(ctx, userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit, defaultListLimit, maxListLimit)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list unread: %w", err)
	}
	return rows, nil
}

// UnreadCount counts notifications using the same predicate as UnreadForUser.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.unread(ctx, userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// MarkRead marks one unread notification owned by userID. It returns false
// when nothing changed: unknown id, another user's notification, or already read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) (bool, error) {
	ctx = ensureContext(ctx)
	if id == 0 || userID == 0 {
		return false, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if result.Error != nil {
		return false, fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkAllRead marks every unread notification of userID and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	ctx = ensureContext(ctx)
	if userID == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListForUser returns all notifications of userID newest first plus the total count.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit, 25, maxListLimit)).
		Offset(max(0, offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return rows, total, nil
}

// Delete removes a notification owned by userID. It reports whether a row was removed.
func (s *NotificationService) Delete(ctx context.Context, id, userID uint) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return false, fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *NotificationService) unread(ctx context.Context, userID uint) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)
}
