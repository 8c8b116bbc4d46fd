package record

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hemophilia-registry-api/internal/logs"

	"github.com/gin-gonic/gin"
)

type RecordController struct {
	Store      *Store
	LogService *logs.LogService
}

// GET /api/records/:table?organization_code=...&limit=...
func (rc *RecordController) GetRecords(c *gin.Context) {
	table := c.Param("table")

	limit := 0
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	var orgCode *string
	if v := strings.TrimSpace(c.Query("organization_code")); v != "" {
		orgCode = &v
	}

	if _, err := rc.Store.EnsureSchema(c.Request.Context(), table); err != nil {
		writeStoreError(c, err)
		return
	}

	res, err := rc.Store.ReadJoined(c.Request.Context(), table, orgCode, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Records fetched successfully",
		"table":    res.Table,
		"columns":  res.Columns,
		"rows":     res.Ordered(),
		"degraded": res.Degraded,
	})
}

// POST /api/records/:table
//
// Every row is validated before anything is written; one bad row rejects
// the whole submission. Rows with nothing filled in, or a valid row label
// and only zero counts, are skipped.
func (rc *RecordController) SaveRecords(c *gin.Context) {
	ctx := c.Request.Context()

	var req InsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := rc.Store.Lookup(c.Param("table"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if t.Directory || t.Derived || t.OrgColumn == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s does not accept record entry", t.Name)})
		return
	}

	code := strings.TrimSpace(req.OrganizationCode)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization_code is required"})
		return
	}
	ok, err := rc.Store.Exists(ctx, code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	rows := make([]map[string]any, 0, len(req.Rows))
	skipped := 0
	for i, raw := range req.Rows {
		if IsBlank(t, raw) {
			skipped++
			continue
		}
		vals, err := Normalize(t, raw)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "row": i + 1, "column": ve.Column})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "row": i + 1})
			return
		}
		// a valid grid label with no counts
		if IsEmpty(t, vals) {
			skipped++
			continue
		}
		rows = append(rows, vals)
	}
	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no rows to save"})
		return
	}

	if err := rc.Store.Schema.Ensure(ctx, t); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := rc.Store.InsertMany(ctx, t.Name, code, rows); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	_ = rc.LogService.Log(logs.SystemLog{
		Service:          "record",
		Action:           "insert",
		Message:          fmt.Sprintf("%d row(s) saved to %s", len(rows), t.Name),
		TargetTable:      &t.Name,
		OrganizationCode: &code,
	}, map[string]any{"inserted": len(rows), "skipped": skipped})

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Records saved successfully",
		"inserted": len(rows),
		"skipped":  skipped,
	})
}

func writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, ErrUnknownTable) {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
