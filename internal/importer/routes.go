package importer

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, svc ImportServiceAPI) {
	importController := &ImportController{Service: svc}

	imports := r.Group("/api/import")
	{
		imports.GET("/:table/template", importController.DownloadTemplate)
		imports.POST("/:table", importController.ImportFile)
	}
}
