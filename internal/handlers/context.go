package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/internal/identity"
	"github.com/lguportal/portal/internal/middleware"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// callerIdentity returns the authenticated caller or writes 401 and returns false.
func callerIdentity(c *gin.Context) (identity.Identity, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return identity.Identity{}, false
	}
	return id, true
}

// parseUintParam reads a positive numeric path parameter, writing 400 when it is malformed.
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || value == 0 {
		response.Error(c, errors.NewBadRequest("invalid "+name))
		return 0, false
	}
	return uint(value), true
}
