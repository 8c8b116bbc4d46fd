package report

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	Service ReportServiceAPI
}

// GET /api/report/tables
func (rc *ReportController) ListTables(c *gin.Context) {
	tables, err := rc.Service.ListReportableTables(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reportable tables fetched successfully",
		"tables":  tables,
	})
}

// POST /api/report
func (rc *ReportController) Compile(c *gin.Context) {
	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := rc.Service.Compile(c.Request.Context(), req.Tables, req.Archive)
	if err != nil {
		if errors.Is(err, ErrNoTables) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(rep.Failed) > 0 {
		c.Header("X-Report-Failed-Sheets", strings.Join(rep.Failed, ","))
	}
	if rep.ArchiveURL != "" {
		c.Header("X-Report-Archive-Url", rep.ArchiveURL)
	}
	c.Header("Content-Disposition", `attachment; filename="`+rep.Filename+`"`)
	c.Data(http.StatusOK, XLSXContentType, rep.Workbook)
}

// GET /api/report/archive
func (rc *ReportController) ListArchive(c *gin.Context) {
	objects, err := rc.Service.ListArchive(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNoArchive) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Archived reports fetched successfully",
		"reports": objects,
	})
}
