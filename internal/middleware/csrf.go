package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lguportal/portal/pkg/crypto"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/response"
)

const (
	// CSRFCookieName is the cookie carrying the anonymous double-submit token.
	CSRFCookieName = "lgu_csrf"
	// CSRFHeaderName is the header clients echo the token in on unsafe methods.
	CSRFHeaderName = "X-CSRF-Token"
	// CSRFFormField is the form field accepted in place of the header.
	CSRFFormField = "csrf_token"

	csrfTokenLength  = 32
	csrfCookieMaxAge = 12 * 60 * 60 // 12 hours
	csrfLoggerModule = "csrf"
	ctxCSRFTokenKey  = "csrfToken"
)

var unsafeMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// CSRF protects cookie-authenticated requests. Signed-in browsers must echo
// their session's CSRF token; anonymous browsers use the double-submit
// cookie. Bearer-token requests carry no ambient credentials and are exempt.
// Must run after LoadSession.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodOptions {
			c.Next()
			return
		}

		id, authenticated := CurrentIdentity(c)
		if authenticated && id.ViaBearer {
			c.Next()
			return
		}

		var (
			token  string
			issued bool
		)
		if authenticated {
			token = id.CSRFToken
		} else {
			var err error
			token, issued, err = ensureCSRFCookie(c)
			if err != nil {
				response.Error(c, errors.ErrInternalServer)
				c.Abort()
				return
			}
		}
		c.Set(ctxCSRFTokenKey, token)

		if isUnsafeMethod(method) {
			submitted := strings.TrimSpace(c.GetHeader(CSRFHeaderName))
			if submitted == "" {
				submitted = strings.TrimSpace(c.PostForm(CSRFFormField))
			}
			if !crypto.ConstantTimeEqual(token, submitted) {
				logger.WithModule(csrfLoggerModule).Warn("csrf validation failed",
					zap.String("method", method),
					zap.String("path", c.Request.URL.Path),
					zap.Bool("authenticated", authenticated),
					zap.Bool("cookie_issued", issued),
				)
				response.Error(c, errors.ErrCSRFInvalid)
				c.Abort()
				return
			}
		} else {
			c.Header(CSRFHeaderName, token)
		}

		c.Next()
	}
}

// CSRFToken returns the token the current request must echo, as resolved by CSRF.
func CSRFToken(c *gin.Context) string {
	return c.GetString(ctxCSRFTokenKey)
}

func ensureCSRFCookie(c *gin.Context) (token string, issued bool, err error) {
	if existing, err := c.Cookie(CSRFCookieName); err == nil && len(existing) > 0 {
		return existing, false, nil
	}

	token, err = crypto.GenerateToken(csrfTokenLength)
	if err != nil {
		return "", false, err
	}
	setCSRFCookie(c, token)
	return token, true, nil
}

func setCSRFCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		Secure:   isSecureRequest(c.Request),
		HttpOnly: false,
		MaxAge:   csrfCookieMaxAge,
		SameSite: http.SameSiteStrictMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func isUnsafeMethod(method string) bool {
	_, ok := unsafeMethods[method]
	return ok
}
