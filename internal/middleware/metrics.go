package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lguportal/portal/pkg/metrics"
)

// unmatchedRoute labels requests no route matched so arbitrary paths
// cannot inflate series cardinality.
const unmatchedRoute = "unmatched"

// Metrics observes request latency by route template and tracks in-flight requests.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
