package database

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, pinger Pinger) {
	healthController := &HealthController{Pinger: pinger}

	r.GET("/api/health", healthController.Health)
}
