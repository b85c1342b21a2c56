package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-registration/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records one latency and count sample per request, labelled with the
// route pattern so ids do not explode cardinality. Routes listed in skip (the
// probes and the scrape endpoint) are not recorded.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
