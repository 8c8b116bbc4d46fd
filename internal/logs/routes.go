package logs

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, logService *LogService) {
	logController := &LogController{LogService: logService}

	r.GET("/api/logs", logController.GetLogs)
}
