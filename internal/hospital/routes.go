package hospital

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, svc HospitalServiceAPI) {
	hospitalController := &HospitalController{Service: svc}

	hospitals := r.Group("/api/hospitals")
	{
		hospitals.GET("", hospitalController.GetAllHospitals)
		hospitals.POST("", hospitalController.UpsertHospitals)
		hospitals.PUT("/rename", hospitalController.RenameHospital)
	}
}
