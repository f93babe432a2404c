package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ibsadiq/scms-backend-sub000/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request counts and latency by route template. Requests that match no route are
// grouped under one label so that arbitrary paths cannot grow the label set.
func Metrics(metrics *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
