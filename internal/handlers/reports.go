package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/permissions"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/response"
)

// ReportHandler exposes citizen issue reports.
type ReportHandler struct {
	service *services.ReportService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

type submitReportRequest struct {
	Category    string `json:"category" validate:"required,max=64"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=5000"`
	Location    string `json:"location" validate:"required,max=255"`
	Severity    string `json:"severity" validate:"omitempty,oneof=low medium high critical"`
}

type reportStatusRequest struct {
	Status     string `json:"status" validate:"required,oneof=pending in_progress resolved rejected"`
	Remarks    string `json:"remarks" validate:"max=2000"`
	AssignedTo *uint  `json:"assigned_to"`
}

// POST /api/reports
func (h *ReportHandler) Submit(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req submitReportRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.service.Submit(requestContext(c), id.UserID, services.SubmitReportInput{
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Severity:    req.Severity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, report)
}

// GET /api/reports/mine
func (h *ReportHandler) Mine(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)
	reports, total, err := h.service.ListMine(requestContext(c), id.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, reports, &response.Meta{Limit: limit, Offset: offset, Total: total})
}

// GET /api/reports
func (h *ReportHandler) List(c *gin.Context) {
	opts := services.ReportListOptions{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    parseIntQuery(c, "limit", 25),
		Offset:   parseIntQuery(c, "offset", 0),
	}
	reports, total, err := h.service.List(requestContext(c), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, reports, &response.Meta{Limit: opts.Limit, Offset: opts.Offset, Total: total})
}

// GET /api/reports/:id
//
// Reporters may read their own reports; other reports need report.view_all
// and are reported as missing otherwise.
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}
	reportID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	report, err := h.service.Get(requestContext(c), reportID)
	if err != nil {
		respondError(c, err)
		return
	}
	if report.ReporterID != id.UserID && !permissions.Allows(id.Role, permissions.ReportViewAll) {
		response.Error(c, errors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// PATCH /api/reports/:id/status
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	reportID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req reportStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.service.UpdateStatus(requestContext(c), reportID, req.Status, req.Remarks, req.AssignedTo)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}
