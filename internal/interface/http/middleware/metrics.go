package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/biblioteca/pkg/metrics"
)

// Metrics 记录HTTP请求指标
// path使用路由模板（/api/v1/loans/:id），未匹配的路由统一记为unmatched
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.TrackHTTPInFlight(1)
		defer metrics.TrackHTTPInFlight(-1)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
