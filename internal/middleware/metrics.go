package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"edgecored/internal/metrics"
)

// MetricsMiddleware records request counts and durations for every Local
// IPC route, labeled by route and status class, so `edgecored metrics`
// and the pushgateway loop carry HTTP-level health alongside the
// deployment/restart counters.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		statusClass := fmt.Sprintf("%dxx", c.Writer.Status()/100)
		metrics.ObserveIPCRequest(route, statusClass, time.Since(start))
	}
}
