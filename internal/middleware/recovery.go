package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/response"
)

// Recovery converts panics into a 500 envelope. The panic value is logged,
// never returned to the caller.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := []zap.Field{
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			}
			if id, ok := CurrentIdentity(c); ok {
				fields = append(fields, zap.Uint("user_id", id.UserID))
			}
			logger.FromContext(c.Request.Context(), "http").Error("panic recovered", fields...)

			if !c.Writer.Written() {
				response.Error(c, errors.ErrInternalServer)
			}
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the JSON 404 envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithMessage("route "+c.Request.URL.Path+" not found"))
}
