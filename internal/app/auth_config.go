package app

import (
	"net/http"
	"strings"

	"github.com/lguportal/portal/internal/auth"
	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/internal/services"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
// The cache is attached by the caller.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	return auth.SessionConfig{
		TTL:         c.Session.TTL,
		TokenLength: c.Session.TokenLength,
		CacheTTL:    c.Session.CacheTTL,
	}
}

// LockoutPolicy converts the lockout settings, filling unset values with the defaults.
func (c AuthConfig) LockoutPolicy() services.LockoutPolicy {
	policy := services.DefaultLockoutPolicy()
	if c.Lockout.Threshold > 0 {
		policy.Threshold = c.Lockout.Threshold
	}
	if c.Lockout.Window > 0 {
		policy.Window = c.Lockout.Window
	}
	if c.Lockout.SuspiciousIPs > 0 {
		policy.SuspiciousIPs = c.Lockout.SuspiciousIPs
	}
	if c.Lockout.SuspiciousWindow > 0 {
		policy.SuspiciousWindow = c.Lockout.SuspiciousWindow
	}
	policy.FailClosed = c.Lockout.FailClosed
	return policy
}

// SessionCookie describes the browser session cookie.
func (c AuthConfig) SessionCookie() middleware.SessionCookie {
	cookie := middleware.DefaultSessionCookie()
	if name := strings.TrimSpace(c.Session.CookieName); name != "" {
		cookie.Name = name
	}
	if c.Session.TTL > 0 {
		cookie.MaxAge = c.Session.TTL
	}
	cookie.Secure = c.Session.CookieSecure
	switch strings.ToLower(strings.TrimSpace(c.Session.SameSite)) {
	case "strict":
		cookie.SameSite = http.SameSiteStrictMode
	case "none":
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	return cookie
}
