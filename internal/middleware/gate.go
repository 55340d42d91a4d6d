package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/identity"
	"github.com/lguportal/portal/internal/models"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/metrics"
	"github.com/lguportal/portal/pkg/response"
)

// DefaultLoginPath is where unauthenticated browsers are sent.
const DefaultLoginPath = "/login"

var landingPages = map[models.Role]string{
	models.RoleAdmin:      "/admin/dashboard",
	models.RoleLGUOfficer: "/lgu-officer/dashboard",
	models.RoleEngineer:   "/engineer/dashboard",
	models.RoleSupervisor: "/supervisor/dashboard",
	models.RoleStaff:      "/staff/dashboard",
	models.RoleCitizen:    "/citizen/dashboard",
}

// LandingPage returns the dashboard path for role, or the login page for unknown roles.
func LandingPage(role models.Role) string {
	if page, ok := landingPages[role]; ok {
		return page
	}
	return DefaultLoginPath
}

// IsLoggedIn reports whether the request carries an authenticated identity.
func IsLoggedIn(c *gin.Context) bool {
	_, ok := CurrentIdentity(c)
	return ok
}

// HasRole reports an exact role match for the caller.
func HasRole(c *gin.Context, role models.Role) bool {
	id, ok := CurrentIdentity(c)
	return ok && id.HasRole(role)
}

// Gate builds authorization guards. Denials are written to the audit log.
type Gate struct {
	audit     *services.AuditService
	loginPath string
}

// NewGate constructs a Gate. A nil audit service disables denial auditing.
func NewGate(audit *services.AuditService) *Gate {
	return &Gate{audit: audit, loginPath: DefaultLoginPath}
}

// RequireLogin aborts unauthenticated requests. Browsers are redirected to
// redirectTarget (the login page when empty) and API clients get 401.
func (g *Gate) RequireLogin(redirectTarget string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsLoggedIn(c) {
			c.Next()
			return
		}
		g.unauthenticated(c, redirectTarget)
	}
}

// RequireRole allows only callers whose role is exactly role.
func (g *Gate) RequireRole(role models.Role) gin.HandlerFunc {
	return g.RequireAnyRole(role)
}

// RequireAnyRole allows callers whose role is one of roles.
func (g *Gate) RequireAnyRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
		names = append(names, string(role))
	}
	requirement := "role " + strings.Join(names, "|")

	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			g.unauthenticated(c, "")
			return
		}
		if _, permitted := allowed[id.Role]; !permitted {
			g.deny(c, id, "role", requirement)
			return
		}
		metrics.AuthorizationChecks.WithLabelValues("role", "allowed").Inc()
		c.Next()
	}
}

func (g *Gate) unauthenticated(c *gin.Context, redirectTarget string) {
	metrics.AuthorizationChecks.WithLabelValues("login", "denied").Inc()
	if WantsJSON(c) {
		response.Error(c, errors.ErrUnauthorized)
		c.Abort()
		return
	}
	if redirectTarget == "" {
		redirectTarget = g.loginPath
	}
	if c.Request.Method == http.MethodGet && redirectTarget == g.loginPath {
		redirectTarget += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	}
	c.Redirect(http.StatusFound, redirectTarget)
	c.Abort()
}

// deny audits a failed role or capability check and sends the caller to
// their own landing page (browsers) or answers 403 (API clients).
func (g *Gate) deny(c *gin.Context, id identity.Identity, guard, requirement string) {
	metrics.AuthorizationChecks.WithLabelValues(guard, "denied").Inc()

	userID := id.UserID
	g.audit.Record(c.Request.Context(), services.AuditEntry{
		UserID:    &userID,
		Action:    services.AuditUnauthorizedAccess,
		Details:   fmt.Sprintf("%s %s denied for role %s (requires %s)", c.Request.Method, c.Request.URL.Path, id.Role, requirement),
		IPAddress: id.IPAddress,
		UserAgent: id.UserAgent,
	})

	if WantsJSON(c) {
		response.Error(c, errors.ErrForbidden)
		c.Abort()
		return
	}
	c.Redirect(http.StatusFound, LandingPage(id.Role))
	c.Abort()
}
