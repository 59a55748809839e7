package middleware

import (
	"strconv"
	"time"

	"github.com/BrunoGao/release-sub004/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware 记录每个API请求的计数与耗时
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 用路由模板做标签，避免路径参数导致标签基数爆炸
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
