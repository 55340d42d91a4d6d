package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/identity"
)

// Gin context keys populated by LoadSession.
const (
	CtxIdentityKey  = "identity"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

func setIdentity(c *gin.Context, id identity.Identity) {
	c.Set(CtxIdentityKey, id)
	c.Set(CtxUserIDKey, id.UserID)
	c.Set(CtxSessionIDKey, id.SessionID)
	c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
}

// CurrentIdentity returns the authenticated caller, if any.
func CurrentIdentity(c *gin.Context) (identity.Identity, bool) {
	if v, ok := c.Get(CtxIdentityKey); ok {
		if id, ok := v.(identity.Identity); ok && id.Authenticated() {
			return id, true
		}
	}
	return identity.FromContext(c.Request.Context())
}

// WantsJSON reports whether the caller is an API client rather than a browser
// navigating pages. API clients get status codes instead of redirects.
func WantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if id, ok := CurrentIdentity(c); ok && id.ViaBearer {
		return true
	}
	if strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
