package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/response"
)

// AuditHandler exposes audit log queries.
type AuditHandler struct {
	service *services.AuditService
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(service *services.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// GET /api/admin/audit?user_id=&action=&since=&until=&limit=&offset=
func (h *AuditHandler) List(c *gin.Context) {
	opts := services.AuditListOptions{
		Action: c.Query("action"),
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if userID, ok := parseUintQuery(c, "user_id"); ok {
		opts.UserID = &userID
	}

	var err error
	if opts.Since, err = parseTimeQuery(c, "since"); err != nil {
		response.Error(c, err)
		return
	}
	if opts.Until, err = parseTimeQuery(c, "until"); err != nil {
		response.Error(c, err)
		return
	}

	logs, total, err := h.service.List(requestContext(c), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{Limit: opts.Limit, Offset: opts.Offset, Total: total})
}
