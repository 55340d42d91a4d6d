package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lguportal/portal/internal/monitoring"
	"github.com/lguportal/portal/pkg/logger"
)

// Health reports readiness of the portal's dependencies. It answers 503 when
// any probe is down or degraded so load balancers stop routing to the instance.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))

		code := http.StatusOK
		if !report.Success {
			code = http.StatusServiceUnavailable
			logger.WithModule("health").Warn("health check failed",
				zap.String("status", string(report.Status)),
				zap.Any("checks", report.Checks))
		}

		c.JSON(code, gin.H{
			"success": report.Success,
			"data": gin.H{
				"status": report.Status,
				"checks": report.Checks,
			},
		})
	}
}
