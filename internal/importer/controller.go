package importer

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"hemophilia-registry-api/internal/record"

	"github.com/gin-gonic/gin"
)

type ImportController struct {
	Service ImportServiceAPI
}

// GET /api/import/:table/template
func (ic *ImportController) DownloadTemplate(c *gin.Context) {
	table := c.Param("table")
	data, err := ic.Service.Template(c.Request.Context(), table)
	if err != nil {
		ic.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="template_`+table+`.xlsx"`)
	c.Data(http.StatusOK, XLSXContentType, data)
}

// POST /api/import/:table
func (ic *ImportController) ImportFile(c *gin.Context) {
	table := c.Param("table")

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .xlsx files can be imported"})
		return
	}

	file, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	res, err := ic.Service.Import(c.Request.Context(), table, file, fh.Filename, fh.Size)
	if err != nil {
		ic.fail(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "xlsx") {
		data, err := ic.Service.ResultWorkbook(res)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="import_log_%s.xlsx"`, table))
		c.Data(http.StatusOK, XLSXContentType, data)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Import finished",
		"result":  res,
	})
}

func (ic *ImportController) fail(c *gin.Context, err error) {
	var he *HeaderError
	switch {
	case errors.As(err, &he):
		c.JSON(http.StatusBadRequest, gin.H{"error": he.Error(), "missing": he.Missing})
	case errors.Is(err, record.ErrUnknownTable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotImportable), errors.Is(err, ErrBadWorkbook):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
