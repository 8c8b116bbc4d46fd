package record

import (
	"hemophilia-registry-api/internal/logs"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, store *Store, logService *logs.LogService) {
	recordController := &RecordController{Store: store, LogService: logService}

	records := r.Group("/api/records")
	{
		records.GET("/:table", recordController.GetRecords)
		records.POST("/:table", recordController.SaveRecords)
	}
}
