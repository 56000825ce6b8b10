package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Rodovar-GPS/GPS/internal/metrics"
)

// unmatchedRoute labels requests that hit no registered route, so arbitrary
// paths cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

// HTTPMetrics records the duration of every request by method, route
// template and status. A nil collector disables recording.
func HTTPMetrics(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
