package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	apperrors "github.com/lguportal/portal/pkg/errors"
)

// SubmitReportInput describes a new citizen issue report.
type SubmitReportInput struct {
	Category    string
	Title       string
	Description string
	Location    string
	Severity    string
}

// ReportListOptions filters the staff report listing.
type ReportListOptions struct {
	Status   string
	Category string
	Limit    int
	Offset   int
}

// ReportService handles citizen issue reports and their triage.
type ReportService struct {
	db            *gorm.DB
	audit         *AuditService
	notifications *NotificationService
	now           func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(db *gorm.DB, audit *AuditService, notifications *NotificationService, clock func() time.Time) (*ReportService, error) {
	if db == nil {
		return nil, errors.New("report service: db is required")
	}
	return &ReportService{db: db, audit: audit, notifications: notifications, now: utcClock(clock)}, nil
}

var reportSeverities = map[string]struct{}{"low": {}, "medium": {}, "high": {}, "critical": {}}

// Submit stores a pending report for reporterID.
func (s *ReportService) Submit(ctx context.Context, reporterID uint, input SubmitReportInput) (*models.IssueReport, error) {
	ctx = ensureContext(ctx)

	report := &models.IssueReport{
		ReporterID:  reporterID,
		Category:    strings.ToLower(strings.TrimSpace(input.Category)),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Severity:    strings.ToLower(defaultIfEmpty(strings.TrimSpace(input.Severity), "medium")),
		Status:      models.ReportPending,
	}
	switch {
	case reporterID == 0:
		return nil, apperrors.ErrUnauthorized
	case report.Category == "" || report.Title == "" || report.Location == "":
		return nil, apperrors.NewBadRequest("category, title and location are required")
	}
	if _, ok := reportSeverities[report.Severity]; !ok {
		return nil, apperrors.NewBadRequest("invalid severity")
	}

	now := s.now()
	report.CreatedAt, report.UpdatedAt = now, now
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("report service: create report: %w", err)
	}

	s.audit.LogActivity(ctx, AuditReportSubmitted, fmt.Sprintf("Submitted report #%d: %s", report.ID, report.Title))
	s.notifications.Create(ctx, CreateNotificationInput{
		UserID:    reporterID,
		Title:     "Report received",
		Message:   fmt.Sprintf("Your report \"%s\" has been received and is pending review.", report.Title),
		Type:      string(models.NotificationInfo),
		ActionURL: fmt.Sprintf("/citizen/reports/%d", report.ID),
	})
	return report, nil
}

// ListMine returns the reports filed by reporterID, newest first.
func (s *ReportService) ListMine(ctx context.Context, reporterID uint, limit, offset int) ([]models.IssueReport, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.IssueReport{}).Where("reporter_id = ?", reporterID)
	return s.page(query, limit, offset)
}

// List returns reports across all reporters.
func (s *ReportService) List(ctx context.Context, opts ReportListOptions) ([]models.IssueReport, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.IssueReport{})
	if status, ok := models.ParseReportStatus(opts.Status); ok {
		query = query.Where("status = ?", status)
	}
	if category := strings.ToLower(strings.TrimSpace(opts.Category)); category != "" {
		query = query.Where("category = ?", category)
	}
	return s.page(query, opts.Limit, opts.Offset)
}

// Get loads a single report.
func (s *ReportService) Get(ctx context.Context, id uint) (*models.IssueReport, error) {
	var report models.IssueReport
	err := s.db.WithContext(ensureContext(ctx)).Take(&report, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report service: get report: %w", err)
	}
	return &report, nil
}

// UpdateStatus moves a report to status and notifies the reporter.
func (s *ReportService) UpdateStatus(ctx context.Context, id uint, status, remarks string, assignedTo *uint) (*models.IssueReport, error) {
	ctx = ensureContext(ctx)

	next, ok := models.ParseReportStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}

	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"status": next, "updated_at": s.now()}
	if remarks = strings.TrimSpace(remarks); remarks != "" {
		updates["remarks"] = remarks
		report.Remarks = remarks
	}
	if assignedTo != nil {
		updates["assigned_to_id"] = *assignedTo
		report.AssignedToID = assignedTo
	}
	if err := s.db.WithContext(ctx).Model(&models.IssueReport{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("report service: update status: %w", err)
	}
	previous := report.Status
	report.Status = next

	s.audit.LogActivity(ctx, AuditReportStatus, fmt.Sprintf("Report #%d: %s -> %s", report.ID, previous, next))

	notificationType, message := reportStatusNotice(report.Title, next)
	if remarks != "" {
		message += " Remarks: " + remarks
	}
	s.notifications.Create(ctx, CreateNotificationInput{
		UserID:    report.ReporterID,
		Title:     "Report status updated",
		Message:   message,
		Type:      string(notificationType),
		ActionURL: fmt.Sprintf("/citizen/reports/%d", report.ID),
		Metadata:  map[string]any{"report_id": report.ID, "status": next},
	})
	return report, nil
}

func (s *ReportService) page(query *gorm.DB, limit, offset int) ([]models.IssueReport, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("report service: count reports: %w", err)
	}
	var reports []models.IssueReport
	if err := query.Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit, 25, maxListLimit)).
		Offset(max(0, offset)).
		Find(&reports).Error; err != nil {
		return nil, 0, fmt.Errorf("report service: list reports: %w", err)
	}
	return reports, total, nil
}

func reportStatusNotice(title string, status models.ReportStatus) (models.NotificationType, string) {
	switch status {
	case models.ReportInProgress:
		return models.NotificationInfo, fmt.Sprintf("Work has started on your report \"%s\".", title)
	case models.ReportResolved:
		return models.NotificationSuccess, fmt.Sprintf("Your report \"%s\" has been resolved.", title)
	case models.ReportRejected:
		return models.NotificationWarning, fmt.Sprintf("Your report \"%s\" was not accepted.", title)
	default:
		return models.NotificationInfo, fmt.Sprintf("Your report \"%s\" is pending review.", title)
	}
}
