package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lguportal/portal/internal/identity"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/response"
)

// DefaultSessionCookieName names the browser session cookie.
const DefaultSessionCookieName = "lgu_session"

// SessionCookie describes how the session token is stored in the browser.
type SessionCookie struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// DefaultSessionCookie returns an HttpOnly, SameSite=Lax cookie living 24 hours.
func DefaultSessionCookie() SessionCookie {
	return SessionCookie{
		Name:     DefaultSessionCookieName,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   24 * time.Hour,
	}
}

// Set writes the session cookie.
func (s SessionCookie) Set(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.name(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.MaxAge.Seconds()),
		Secure:   s.Secure || isSecureRequest(c.Request),
		HttpOnly: true,
		SameSite: s.sameSite(),
	})
}

// Clear expires the session cookie.
func (s SessionCookie) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.Secure || isSecureRequest(c.Request),
		HttpOnly: true,
		SameSite: s.sameSite(),
	})
}

func (s SessionCookie) name() string {
	if s.Name == "" {
		return DefaultSessionCookieName
	}
	return s.Name
}

func (s SessionCookie) sameSite() http.SameSite {
	if s.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return s.SameSite
}

// Authenticator resolves credentials presented by a request.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*services.Principal, error)
	AuthenticateBearer(ctx context.Context, bearer string) (*services.Principal, error)
}

// SessionLifecycle refreshes and terminates sessions.
type SessionLifecycle interface {
	RefreshSession(ctx context.Context, token string) error
	RefreshSessionByID(ctx context.Context, id string) error
	TerminateSession(ctx context.Context, token string) error
}

// LoadSession attaches the caller's identity to the request. A bearer token
// takes precedence over the session cookie. Both slide the session expiry. A
// cookie naming an invalid session is terminated and cleared, and the request
// continues anonymously; guards further down decide whether that is
// acceptable. When the session store cannot be read the request fails with a
// 500 and the cookie is left alone.
func LoadSession(authn Authenticator, sessions SessionLifecycle, cookie SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := identity.Client{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		ctx := identity.WithClient(c.Request.Context(), client)
		c.Request = c.Request.WithContext(ctx)
		log := logger.FromContext(ctx, "session")

		if bearer, ok := bearerToken(c); ok {
			principal, err := authn.AuthenticateBearer(ctx, bearer)
			if err != nil {
				if !services.IsCredentialRejection(err) {
					abortUnavailable(c, log, err)
					return
				}
				log.Debug("bearer token rejected", zap.Error(err))
				c.Header("WWW-Authenticate", "Bearer")
				c.Next()
				return
			}
			if err := sessions.RefreshSessionByID(ctx, principal.Session.ID); err != nil {
				log.Warn("refresh session", zap.String("session_id", principal.Session.ID), zap.Error(err))
			}
			setIdentity(c, principalIdentity(principal, client, true))
			c.Next()
			return
		}

		token, err := c.Cookie(cookie.name())
		if err != nil || strings.TrimSpace(token) == "" {
			c.Next()
			return
		}

		principal, err := authn.Authenticate(ctx, token)
		if err != nil {
			if !services.IsCredentialRejection(err) {
				abortUnavailable(c, log, err)
				return
			}
			log.Debug("session rejected", zap.Error(err))
			if termErr := sessions.TerminateSession(ctx, token); termErr != nil {
				log.Warn("terminate rejected session", zap.Error(termErr))
			}
			cookie.Clear(c)
			c.Next()
			return
		}

		if err := sessions.RefreshSession(ctx, token); err != nil {
			log.Warn("refresh session", zap.String("session_id", principal.Session.ID), zap.Error(err))
		} else {
			cookie.Set(c, token)
		}
		setIdentity(c, principalIdentity(principal, client, false))
		c.Next()
	}
}

func abortUnavailable(c *gin.Context, log *zap.Logger, err error) {
	log.Error("session lookup failed", zap.Error(err))
	response.Error(c, errors.ErrInternalServer)
	c.Abort()
}

func principalIdentity(p *services.Principal, client identity.Client, viaBearer bool) identity.Identity {
	return identity.Identity{
		UserID:    p.User.ID,
		Email:     p.User.Email,
		Role:      p.User.Role,
		SessionID: p.Session.ID,
		CSRFToken: p.Session.CSRFToken,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		ViaBearer: viaBearer,
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authz[7:])
	return token, token != ""
}
