package catalog

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, reg CatalogAPI) {
	catalogController := &CatalogController{Catalog: reg}

	tables := r.Group("/api/tables")
	{
		tables.GET("", catalogController.ListTables)
		tables.GET("/:table", catalogController.GetTable)
	}
}
