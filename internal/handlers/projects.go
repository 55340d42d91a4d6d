package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/response"
)

// ProjectHandler exposes infrastructure projects.
type ProjectHandler struct {
	service *services.ProjectService
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(service *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

type createProjectRequest struct {
	Name        string     `json:"name" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=5000"`
	Location    string     `json:"location" validate:"required,max=255"`
	Status      string     `json:"status" validate:"omitempty,oneof=planned ongoing completed"`
	Budget      float64    `json:"budget" validate:"gte=0"`
	Contractor  string     `json:"contractor" validate:"max=255"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type projectStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=planned ongoing completed"`
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req createProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.service.Create(requestContext(c), id.UserID, services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Status:      req.Status,
		Budget:      req.Budget,
		Contractor:  req.Contractor,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	projects, total, err := h.service.List(requestContext(c), c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, projects, &response.Meta{Limit: limit, Offset: offset, Total: total})
}

// PATCH /api/projects/:id/status
func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	projectID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req projectStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.service.UpdateStatus(requestContext(c), projectID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}
