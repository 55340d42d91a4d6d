package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/security"
	"github.com/lguportal/portal/pkg/response"
)

// SecurityHandler reports the portal's security posture to administrators.
type SecurityHandler struct {
	auditor *security.Auditor
}

// NewSecurityHandler constructs a SecurityHandler.
func NewSecurityHandler(auditor *security.Auditor) *SecurityHandler {
	return &SecurityHandler{auditor: auditor}
}

// GET /api/admin/security
func (h *SecurityHandler) Show(c *gin.Context) {
	response.Success(c, http.StatusOK, h.auditor.Run(c.Request.Context()))
}
