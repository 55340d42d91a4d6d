package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/response"
)

// UserHandler exposes administrative account management.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type userStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active inactive"`
}

type userRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin lgu_officer engineer citizen supervisor staff"`
}

// GET /api/admin/users
func (h *UserHandler) List(c *gin.Context) {
	opts := services.UserListOptions{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Search: c.Query("q"),
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	}
	users, total, err := h.service.List(requestContext(c), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, users, &response.Meta{Limit: opts.Limit, Offset: opts.Offset, Total: total})
}

// GET /api/admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	user, err := h.service.GetByID(requestContext(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PATCH /api/admin/users/:id/status
func (h *UserHandler) SetStatus(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req userStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if userID == id.UserID {
		response.Error(c, errors.NewBadRequest("You cannot change the status of your own account"))
		return
	}

	user, err := h.service.SetStatus(requestContext(c), userID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PATCH /api/admin/users/:id/role
func (h *UserHandler) SetRole(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}
	userID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var req userRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if userID == id.UserID {
		response.Error(c, errors.NewBadRequest("You cannot change the role of your own account"))
		return
	}

	user, err := h.service.SetRole(requestContext(c), userID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
