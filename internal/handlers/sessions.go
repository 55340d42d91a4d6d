package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/lguportal/portal/internal/auth"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/response"
)

// SessionHandler lists and ends the caller's own sessions.
type SessionHandler struct {
	sessions *iauth.SessionService
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *iauth.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionView struct {
	ID         string `json:"id"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	CreatedAt  string `json:"created_at"`
	LastSeenAt string `json:"last_seen_at"`
	ExpiresAt  string `json:"expires_at"`
	Current    bool   `json:"current"`
}

// GET /api/sessions
func (h *SessionHandler) ListMine(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListActiveForUser(requestContext(c), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:         s.ID,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
			LastSeenAt: s.LastSeenAt.UTC().Format(time.RFC3339),
			ExpiresAt:  s.ExpiresAt.UTC().Format(time.RFC3339),
			Current:    s.ID == id.SessionID,
		})
	}
	response.Success(c, http.StatusOK, views)
}

// DELETE /api/sessions/:id
func (h *SessionHandler) Revoke(c *gin.Context) {
	id, ok := callerIdentity(c)
	if !ok {
		return
	}
	sessionID := strings.TrimSpace(c.Param("id"))

	ctx := requestContext(c)
	if _, err := h.sessions.CheckSessionByID(ctx, sessionID, id.UserID); err != nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	if err := h.sessions.TerminateSessionByID(ctx, sessionID); err != nil {
		respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Session ended")
}
