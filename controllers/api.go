package controllers

import (
	"pkgsync/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIController struct {
	server *services.MirrorServer
}

/**
 * Create new API controller instance
 * @param {*services.MirrorServer} server - Mirror state holding the store and counters
 * @returns {*APIController} New API controller instance
 * @example
 * server, _ := services.NewMirrorServer(&cfg, nil)
 * controller := controllers.NewAPIController(server)
 */
func NewAPIController(server *services.MirrorServer) *APIController {
	return &APIController{
		server: server,
	}
}

/**
 * Register system routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - /healthz reports version, uptime and request counters
 * - /metrics exposes the mirror's prometheus registry
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.server.Metrics().Registry(), promhttp.HandlerOpts{})))
}

// @Summary 业务就绪探针
// @Description 检查服务是否已经做好准备，返回服务版本、启动时间、健康状态和关键指标统计结果
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(200, a.server.GetHealthz())
}
