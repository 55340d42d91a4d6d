package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/permissions"
	"github.com/lguportal/portal/pkg/metrics"
)

// RequirePermission allows callers whose role grants capability.
func (g *Gate) RequirePermission(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			g.unauthenticated(c, "")
			return
		}
		if !permissions.Allows(id.Role, capability) {
			g.deny(c, id, "capability", "capability "+capability)
			return
		}
		metrics.AuthorizationChecks.WithLabelValues("capability", "allowed").Inc()
		c.Next()
	}
}
