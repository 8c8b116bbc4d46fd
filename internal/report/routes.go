package report

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, svc ReportServiceAPI) {
	reportController := &ReportController{Service: svc}

	reports := r.Group("/api/report")
	{
		reports.GET("/tables", reportController.ListTables)
		reports.GET("/archive", reportController.ListArchive)
		reports.POST("", reportController.Compile)
	}
}
