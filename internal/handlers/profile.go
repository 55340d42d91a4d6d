package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/response"
)

// ProfileHandler lets users view and complete their own profile.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(users *services.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

type profileRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32,phone"`
	Barangay  string `json:"barangay" validate:"max=100"`
	Address   string `json:"address" validate:"max=1000"`
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}
	user, err := h.users.GetByID(requestContext(c), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PUT /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req profileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(requestContext(c), id.UserID, services.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Barangay:  req.Barangay,
		Address:   req.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
