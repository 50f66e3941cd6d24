package middleware

import (
	"time"

	"pkgsync/services"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP请求统计中间件
 * @param {*services.SyncMetrics} metrics - Counters of the mirror
 * @description
 * - 统计镜像服务收到的请求数量
 * - 记录请求处理时间
 * - 区分成功和失败的请求
 * - 为健康检查接口提供请求数据
 */
func MetricsMiddleware(metrics *services.SyncMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		start := time.Now()

		c.Next()

		// 标签取路由模式，不取对象键
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		metrics.ObserveRequest(path, c.Writer.Status(), time.Since(start).Seconds())
	}
}
