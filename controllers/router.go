package controllers

import (
	"pkgsync/internal/middleware"
	"pkgsync/services"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the mirror's gin engine with every route registered.
func NewRouter(server *services.MirrorServer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.MetricsMiddleware(server.Metrics()))
	NewAPIController(server).RegisterRoutes(router)
	NewBlobController(server.Store()).RegisterRoutes(router, middleware.RequireToken(server.TokenSecret()))
	return router
}
