package aggregate

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, svc AggregateServiceAPI) {
	aggregateController := &AggregateController{Service: svc}

	aggregates := r.Group("/api/aggregates")
	{
		aggregates.POST("/age-groups/rebuild", aggregateController.RebuildAgeSummary)
		aggregates.GET("/patient-counts", aggregateController.PatientCounts)
		aggregates.GET("/gender-by-disorder", aggregateController.GenderByDisorder)
	}
}
