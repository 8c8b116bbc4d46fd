package organization

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, svc OrganizationServiceAPI) {
	organizationController := &OrganizationController{Service: svc}

	orgs := r.Group("/api/organizations")
	{
		orgs.GET("", organizationController.List)
		orgs.POST("", organizationController.Register)
		orgs.GET("/options", organizationController.Options)
	}
}
