package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/lguportal/portal/internal/models"
	apperrors "github.com/lguportal/portal/pkg/errors"
)

// GIS feature filters.
const (
	GISFilterAll       = "all"
	GISFilterIssues    = "issues"
	GISFilterProjects  = "projects"
	GISFilterCompleted = "completed"
)

// Default map centre (Manila).
const (
	DefaultGISCenterLat = 14.5995
	DefaultGISCenterLng = 120.9842
	DefaultGISSpread    = 0.05
)

// FeatureCollection is a GeoJSON FeatureCollection with portal statistics.
type FeatureCollection struct {
	Type       string        `json:"type"`
	Features   []Feature     `json:"features"`
	Statistics GISStatistics `json:"statistics"`
}

// Feature is a single GeoJSON point feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry holds a GeoJSON point; coordinates are [longitude, latitude].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// GISStatistics summarises the map contents.
type GISStatistics struct {
	TotalMarkers      int   `json:"total_markers"`
	ActiveIssues      int64 `json:"active_issues"`
	ConstructionZones int64 `json:"construction_zones"`
	CompletedWork     int64 `json:"completed_work"`
}

// GISService builds map features from reports and projects.
type GISService struct {
	db       *gorm.DB
	geocoder Geocoder
}

// NewGISService constructs a GISService. A nil geocoder falls back to a
// HashGeocoder around the default centre.
func NewGISService(db *gorm.DB, geocoder Geocoder) (*GISService, error) {
	if db == nil {
		return nil, errors.New("gis service: db is required")
	}
	if geocoder == nil {
		geocoder = HashGeocoder{CenterLat: DefaultGISCenterLat, CenterLng: DefaultGISCenterLng, Spread: DefaultGISSpread}
	}
	return &GISService{db: db, geocoder: geocoder}, nil
}

// ParseGISFilter normalises filter; empty means all.
func ParseGISFilter(filter string) (string, bool) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	switch filter {
	case "":
		return GISFilterAll, true
	case GISFilterAll, GISFilterIssues, GISFilterProjects, GISFilterCompleted:
		return filter, true
	}
	return "", false
}

// Features returns the feature collection for filter.
func (s *GISService) Features(ctx context.Context, filter string) (*FeatureCollection, error) {
	ctx = ensureContext(ctx)

	filter, ok := ParseGISFilter(filter)
	if !ok {
		return nil, apperrors.NewBadRequest("filter must be one of all, issues, projects, completed")
	}

	var (
		reportStatuses  []models.ReportStatus
		projectStatuses []models.ProjectStatus
	)
	switch filter {
	case GISFilterAll:
		reportStatuses = []models.ReportStatus{models.ReportPending, models.ReportInProgress, models.ReportResolved}
		projectStatuses = []models.ProjectStatus{models.ProjectPlanned, models.ProjectOngoing, models.ProjectCompleted}
	case GISFilterIssues:
		reportStatuses = []models.ReportStatus{models.ReportPending, models.ReportInProgress}
	case GISFilterProjects:
		projectStatuses = []models.ProjectStatus{models.ProjectPlanned, models.ProjectOngoing}
	case GISFilterCompleted:
		reportStatuses = []models.ReportStatus{models.ReportResolved}
		projectStatuses = []models.ProjectStatus{models.ProjectCompleted}
	}

	collection := &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}

	if len(reportStatuses) > 0 {
		var reports []models.IssueReport
		if err := s.db.WithContext(ctx).Where("status IN ?", reportStatuses).
			Order("created_at DESC").Find(&reports).Error; err != nil {
			return nil, fmt.Errorf("gis service: load reports: %w", err)
		}
		for _, report := range reports {
			lat, lng, placed := s.geocoder.Geocode(ctx, report.Location)
			if !placed {
				continue
			}
			collection.Features = append(collection.Features, point(lat, lng, map[string]any{
				"id":       report.ID,
				"kind":     "issue",
				"title":    report.Title,
				"category": report.Category,
				"severity": report.Severity,
				"status":   report.Status,
				"location": report.Location,
			}))
		}
	}

	if len(projectStatuses) > 0 {
		var projects []models.Project
		if err := s.db.WithContext(ctx).Where("status IN ?", projectStatuses).
			Order("created_at DESC").Find(&projects).Error; err != nil {
			return nil, fmt.Errorf("gis service: load projects: %w", err)
		}
		for _, project := range projects {
			lat, lng, placed := s.geocoder.Geocode(ctx, project.Location)
			if !placed {
				continue
			}
			collection.Features = append(collection.Features, point(lat, lng, map[string]any{
				"id":         project.ID,
				"kind":       "project",
				"title":      project.Name,
				"status":     project.Status,
				"location":   project.Location,
				"contractor": project.Contractor,
				"budget":     project.Budget,
			}))
		}
	}

	stats, err := s.statistics(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalMarkers = len(collection.Features)
	collection.Statistics = stats
	return collection, nil
}

// statistics counts across the whole map regardless of the active filter.
func (s *GISService) statistics(ctx context.Context) (GISStatistics, error) {
	var stats GISStatistics
	var resolved, finished int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.IssueReport{}).
		Where("status IN ?", []models.ReportStatus{models.ReportPending, models.ReportInProgress}).
		Count(&stats.ActiveIssues).Error; err != nil {
		return stats, fmt.Errorf("gis service: count active issues: %w", err)
	}
	if err := db.Model(&models.Project{}).Where("status = ?", models.ProjectOngoing).
		Count(&stats.ConstructionZones).Error; err != nil {
		return stats, fmt.Errorf("gis service: count construction zones: %w", err)
	}
	if err := db.Model(&models.IssueReport{}).Where("status = ?", models.ReportResolved).
		Count(&resolved).Error; err != nil {
		return stats, fmt.Errorf("gis service: count resolved issues: %w", err)
	}
	if err := db.Model(&models.Project{}).Where("status = ?", models.ProjectCompleted).
		Count(&finished).Error; err != nil {
		return stats, fmt.Errorf("gis service: count completed projects: %w", err)
	}
	stats.CompletedWork = resolved + finished
	return stats, nil
}

func point(lat, lng float64, properties map[string]any) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Point", Coordinates: [2]float64{lng, lat}},
		Properties: properties,
	}
}
