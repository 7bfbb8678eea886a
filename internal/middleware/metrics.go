package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusregistry/registrar-api/internal/service"
)

// Metrics observes every request on the wrapped routes. The route
// template (c.FullPath) keys the series so path params do not explode
// label cardinality; unmatched routes fall back to the raw path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
