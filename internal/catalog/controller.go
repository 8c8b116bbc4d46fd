package catalog

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	Catalog CatalogAPI
}

// GET /api/tables
//
// Clients cache the descriptors and send the last ETag back in
// If-None-Match; an unchanged catalog answers 304.
func (cc *CatalogController) ListTables(c *gin.Context) {
	sum := cc.Catalog.Checksum()
	if sum != "" {
		c.Header("ETag", `"`+sum+`"`)
		if match := strings.Trim(c.GetHeader("If-None-Match"), `"`); match == sum {
			c.Status(http.StatusNotModified)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Tables fetched successfully",
		"checksum": sum,
		"tables":   cc.Catalog.All(),
	})
}

// GET /api/tables/:table
func (cc *CatalogController) GetTable(c *gin.Context) {
	t, ok := cc.Catalog.Lookup(c.Param("table"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Table fetched successfully",
		"table":     t,
		"template":  TemplateHeaders(t),
		"reference": OrgRefLabel,
	})
}
