package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/identity"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/response"
)

// Notification API actions.
const (
	ActionGetUnread   = "get_unread"
	ActionGetCount    = "get_count"
	ActionMarkRead    = "mark_read"
	ActionMarkAllRead = "mark_all_read"
)

var errMethodNotAllowed = errors.New("METHOD_NOT_ALLOWED", "Method not allowed for this action", http.StatusMethodNotAllowed)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service *services.NotificationService
	users   *services.UserService
	audit   *services.AuditService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService, users *services.UserService, audit *services.AuditService) *NotificationHandler {
	return &NotificationHandler{service: service, users: users, audit: audit}
}

type sendNotificationRequest struct {
	UserID    uint   `json:"user_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=255"`
	Message   string `json:"message" validate:"required,max=5000"`
	Type      string `json:"type" validate:"omitempty,oneof=info success warning error"`
	ActionURL string `json:"action_url" validate:"omitempty,max=2048"`
}

type notificationActionRequest struct {
	Action         string `json:"action" form:"action"`
	UserID         uint   `json:"user_id" form:"user_id"`
	NotificationID uint   `json:"notification_id" form:"notification_id"`
	Limit          int    `json:"limit" form:"limit"`
}

// GET|POST /api/notifications?action=...
//
// Reads use GET (get_unread, get_count); writes use POST (mark_read,
// mark_all_read). user_id defaults to the caller and may only name another
// user when the caller is an administrator.
func (h *NotificationHandler) Action(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req notificationActionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, errors.NewBadRequest("invalid request payload"))
		return
	}
	if req.Action == "" {
		req.Action = c.Query("action")
	}
	if req.UserID == 0 {
		req.UserID, _ = parseUintQuery(c, "user_id")
	}

	userID, ok := h.targetUser(c, id, req.UserID)
	if !ok {
		return
	}

	ctx := requestContext(c)
	action := strings.ToLower(strings.TrimSpace(req.Action))
	switch action {
	case ActionGetUnread, ActionGetCount:
		if c.Request.Method != http.MethodGet {
			response.Error(c, errMethodNotAllowed)
			return
		}
	case ActionMarkRead, ActionMarkAllRead:
		if c.Request.Method != http.MethodPost {
			response.Error(c, errMethodNotAllowed)
			return
		}
	default:
		response.Error(c, errors.NewBadRequest("Invalid action"))
		return
	}

	switch action {
	case ActionGetUnread:
		if req.Limit == 0 {
			req.Limit = parseIntQuery(c, "limit", 0)
		}
		items, err := h.service.UnreadForUser(ctx, userID, req.Limit)
		if err != nil {
			respondError(c, err)
			return
		}
		count, err := h.service.UnreadCount(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Fields(c, http.StatusOK, gin.H{
			"notifications": items,
			"unread_count":  count,
		})

	case ActionGetCount:
		count, err := h.service.UnreadCount(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Fields(c, http.StatusOK, gin.H{"count": count})

	case ActionMarkRead:
		if req.NotificationID == 0 {
			response.Error(c, errors.NewBadRequest("notification_id is required"))
			return
		}
		changed, err := h.service.MarkRead(ctx, req.NotificationID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !changed {
			response.Error(c, errors.ErrNotFound.WithMessage("Notification not found or already read"))
			return
		}
		response.Message(c, http.StatusOK, "Notification marked as read")

	case ActionMarkAllRead:
		updated, err := h.service.MarkAllRead(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Fields(c, http.StatusOK, gin.H{
			"message": fmt.Sprintf("%d notification(s) marked as read", updated),
			"updated": updated,
		})
	}
}

// targetUser resolves the user a notification request addresses.
func (h *NotificationHandler) targetUser(c *gin.Context, caller identity.Identity, requested uint) (uint, bool) {
	if requested == 0 || requested == caller.UserID {
		return caller.UserID, true
	}
	if caller.Role == models.RoleAdmin {
		return requested, true
	}

	h.audit.LogActivity(requestContext(c), services.AuditUnauthorizedAccess,
		fmt.Sprintf("Attempted to access notifications of user %d", requested))
	response.Error(c, errors.ErrForbidden)
	return 0, false
}

// GET /api/notifications/list
func (h *NotificationHandler) List(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, total, err := h.service.ListForUser(requestContext(c), id.UserID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// DELETE /api/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}
	notificationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	deleted, err := h.service.Delete(requestContext(c), notificationID, id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		response.Error(c, errors.ErrNotFound)
		return
	}
	response.Message(c, http.StatusOK, "Notification deleted")
}

// POST /api/admin/notifications
func (h *NotificationHandler) Send(c *gin.Context) {
	var req sendNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		response.Error(c, errors.NewBadRequest("title is required"))
		return
	}

	ctx := requestContext(c)
	recipient, err := h.users.GetByID(ctx, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	effect := h.service.Create(ctx, services.CreateNotificationInput{
		UserID:    recipient.ID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		ActionURL: req.ActionURL,
	})
	if !effect.Recorded() {
		respondError(c, effect.Err)
		return
	}

	h.audit.LogActivity(ctx, services.AuditNotificationSent,
		fmt.Sprintf("Sent notification %q to %s", req.Title, recipient.Email))
	response.Message(c, http.StatusCreated, "Notification sent")
}
