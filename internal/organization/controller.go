package organization

import (
	"errors"
	"net/http"

	"hemophilia-registry-api/internal/record"

	"github.com/gin-gonic/gin"
)

type OrganizationController struct {
	Service OrganizationServiceAPI
}

// POST /api/organizations
func (oc *OrganizationController) Register(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	org, err := oc.Service.Register(c.Request.Context(), in)
	if err != nil {
		var (
			dup *DuplicateError
			ve  *record.ValidationError
		)
		switch {
		case errors.As(err, &dup):
			c.JSON(http.StatusConflict, gin.H{"error": dup.Error(), "field": dup.Field, "value": dup.Value})
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Column})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Organization registered successfully",
		"organization": org,
	})
}

// GET /api/organizations
func (oc *OrganizationController) List(c *gin.Context) {
	orgs, err := oc.Service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Organizations fetched successfully",
		"organizations": orgs,
	})
}

// GET /api/organizations/options
func (oc *OrganizationController) Options(c *gin.Context) {
	opts, err := oc.Service.Options(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Organization options fetched successfully",
		"options": opts,
	})
}
