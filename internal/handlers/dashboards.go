package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/permissions"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/response"
)

const dashboardRecentLimit = 5

// DashboardHandler renders the JSON summary behind each role's landing page.
type DashboardHandler struct {
	users         *services.UserService
	notifications *services.NotificationService
	reports       *services.ReportService
	projects      *services.ProjectService
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(users *services.UserService, notifications *services.NotificationService, reports *services.ReportService, projects *services.ProjectService) *DashboardHandler {
	return &DashboardHandler{
		users:         users,
		notifications: notifications,
		reports:       reports,
		projects:      projects,
	}
}

// GET /<role>/dashboard
func (h *DashboardHandler) Show(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	ctx := requestContext(c)
	user, err := h.users.GetByID(ctx, id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(ctx, id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.summary(ctx, id.UserID, id.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"role":                 id.Role,
		"landing_page":         middleware.LandingPage(id.Role),
		"user":                 user,
		"capabilities":         permissions.ForRole(id.Role),
		"unread_notifications": unread,
		"summary":              summary,
	})
}

func (h *DashboardHandler) summary(ctx context.Context, userID uint, role models.Role) (gin.H, error) {
	switch role {
	case models.RoleCitizen:
		recent, total, err := h.reports.ListMine(ctx, userID, dashboardRecentLimit, 0)
		if err != nil {
			return nil, err
		}
		return gin.H{"my_reports": total, "recent_reports": recent}, nil

	case models.RoleAdmin:
		_, users, err := h.users.List(ctx, services.UserListOptions{Limit: 1})
		if err != nil {
			return nil, err
		}
		_, pending, err := h.users.List(ctx, services.UserListOptions{Status: string(models.UserStatusPending), Limit: 1})
		if err != nil {
			return nil, err
		}
		reports, err := h.reportCounts(ctx)
		if err != nil {
			return nil, err
		}
		return gin.H{"total_users": users, "pending_users": pending, "reports": reports}, nil
	}

	reports, err := h.reportCounts(ctx)
	if err != nil {
		return nil, err
	}
	recent, _, err := h.reports.List(ctx, services.ReportListOptions{Limit: dashboardRecentLimit})
	if err != nil {
		return nil, err
	}
	projects := gin.H{}
	for _, status := range []models.ProjectStatus{models.ProjectPlanned, models.ProjectOngoing, models.ProjectCompleted} {
		_, total, err := h.projects.List(ctx, string(status), 1, 0)
		if err != nil {
			return nil, err
		}
		projects[string(status)] = total
	}
	return gin.H{"reports": reports, "projects": projects, "recent_reports": recent}, nil
}

func (h *DashboardHandler) reportCounts(ctx context.Context) (gin.H, error) {
	counts := gin.H{}
	for _, status := range []models.ReportStatus{models.ReportPending, models.ReportInProgress, models.ReportResolved, models.ReportRejected} {
		_, total, err := h.reports.List(ctx, services.ReportListOptions{Status: string(status), Limit: 1})
		if err != nil {
			return nil, err
		}
		counts[string(status)] = total
	}
	return counts, nil
}
