package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/identity"
	"github.com/lguportal/portal/internal/models"
)

// Audit action names.
const (
	AuditLogin              = "login"
	AuditLoginFailed        = "login_failed"
	AuditLogout             = "logout"
	AuditUnauthorizedAccess = "unauthorized_access"
	AuditRegister           = "register"
	AuditEmailVerified      = "email_verified"
	AuditProfileUpdated     = "profile_updated"
	AuditUserStatusChanged  = "user_status_changed"
	AuditUserRoleChanged    = "user_role_changed"
	AuditReportSubmitted    = "report_submitted"
	AuditReportStatus       = "report_status_changed"
	AuditProjectCreated     = "project_created"
	AuditProjectStatus      = "project_status_changed"
	AuditNotificationSent   = "notification_sent"
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	UserID    *uint
	Action    string
	Details   string
	IPAddress string
	UserAgent string
}

// AuditListOptions controls filtering and paging of audit queries.
type AuditListOptions struct {
	UserID *uint
	Action string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB, clock func() time.Time) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, now: utcClock(clock)}, nil
}

// LogActivity records action for the authenticated caller found in ctx. It is
// skipped for anonymous callers and never returns an error.
func (s *AuditService) LogActivity(ctx context.Context, action, description string) Effect {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return skipped()
	}
	userID := id.UserID
	return s.Record(ctx, AuditEntry{
		UserID:    &userID,
		Action:    action,
		Details:   description,
		IPAddress: id.IPAddress,
		UserAgent: id.UserAgent,
	})
}

// Record persists entry with an explicit actor. Missing client metadata is
// filled from ctx.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) Effect {
	ctx = ensureContext(ctx)
	if s == nil {
		return skipped()
	}

	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return failed(ctx, "audit", errors.New("audit service: action is required"))
	}

	client := identity.ClientFromContext(ctx)
	row := models.AuditLog{
		UserID:    entry.UserID,
		Action:    action,
		Details:   strings.TrimSpace(entry.Details),
		IPAddress: defaultIfEmpty(strings.TrimSpace(entry.IPAddress), client.IPAddress),
		UserAgent: defaultIfEmpty(strings.TrimSpace(entry.UserAgent), client.UserAgent),
		CreatedAt: s.now(),
	}
	if row.UserID != nil && *row.UserID == 0 {
		row.UserID = nil
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return failed(ctx, "audit", err, zap.String("action", action))
	}
	return recorded()
}

// List returns audit logs ordered by creation time descending, and the total match count.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if opts.UserID != nil {
		query = query.Where("user_id = ?", *opts.UserID)
	}
	if action := strings.TrimSpace(opts.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if opts.Since != nil {
		query = query.Where("created_at >= ?", opts.Since.UTC())
	}
	if opts.Until != nil {
		query = query.Where("created_at <= ?", opts.Until.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	var logs []models.AuditLog
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(opts.Limit, 50, 200)).
		Offset(max(0, opts.Offset)).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}
	return logs, total, nil
}

// CleanupOlderThan removes audit logs older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)
	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
