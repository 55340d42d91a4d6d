package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/identity"
)

// asIdentity stands in for LoadSession in tests that only need a caller.
func asIdentity(id identity.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		setIdentity(c, id)
		c.Next()
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
