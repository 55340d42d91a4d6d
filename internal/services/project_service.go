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

// CreateProjectInput describes a new infrastructure project.
type CreateProjectInput struct {
	Name        string
	Description string
	Location    string
	Status      string
	Budget      float64
	Contractor  string
	StartDate   *time.Time
	EndDate     *time.Time
}

// ProjectService manages public works projects.
type ProjectService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// NewProjectService constructs a ProjectService.
func NewProjectService(db *gorm.DB, audit *AuditService, clock func() time.Time) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	return &ProjectService{db: db, audit: audit, now: utcClock(clock)}, nil
}

// Create stores a project on behalf of createdBy.
func (s *ProjectService) Create(ctx context.Context, createdBy uint, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	status := models.ProjectPlanned
	if strings.TrimSpace(input.Status) != "" {
		parsed, ok := models.ParseProjectStatus(input.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		status = parsed
	}

	project := &models.Project{
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Status:      status,
		Budget:      input.Budget,
		Contractor:  strings.TrimSpace(input.Contractor),
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		CreatedByID: createdBy,
	}
	switch {
	case project.Name == "" || project.Location == "":
		return nil, apperrors.NewBadRequest("name and location are required")
	case project.Budget < 0:
		return nil, apperrors.NewBadRequest("budget must not be negative")
	case project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate):
		return nil, apperrors.NewBadRequest("end date must not precede start date")
	}

	now := s.now()
	project.CreatedAt, project.UpdatedAt = now, now
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, fmt.Errorf("project service: create project: %w", err)
	}

	s.audit.LogActivity(ctx, AuditProjectCreated, fmt.Sprintf("Created project #%d: %s", project.ID, project.Name))
	return project, nil
}

// List returns projects, optionally filtered by status, newest first.
func (s *ProjectService) List(ctx context.Context, status string, limit, offset int) ([]models.Project, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.Project{})
	if parsed, ok := models.ParseProjectStatus(status); ok {
		query = query.Where("status = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("project service: count projects: %w", err)
	}
	var projects []models.Project
	if err := query.Order("created_at DESC").Order("id DESC").
		Limit(clampLimit(limit, 25, maxListLimit)).
		Offset(max(0, offset)).
		Find(&projects).Error; err != nil {
		return nil, 0, fmt.Errorf("project service: list projects: %w", err)
	}
	return projects, total, nil
}

// UpdateStatus changes the lifecycle status of a project.
func (s *ProjectService) UpdateStatus(ctx context.Context, id uint, status string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	next, ok := models.ParseProjectStatus(status)
	if !ok {
		return nil, ErrInvalidStatus
	}

	var project models.Project
	err := s.db.WithContext(ctx).Take(&project, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("project service: get project: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).
		Updates(map[string]any{"status": next, "updated_at": s.now()}).Error; err != nil {
		return nil, fmt.Errorf("project service: update status: %w", err)
	}
	previous := project.Status
	project.Status = next

	s.audit.LogActivity(ctx, AuditProjectStatus, fmt.Sprintf("Project #%d: %s -> %s", project.ID, previous, next))
	return &project, nil
}
