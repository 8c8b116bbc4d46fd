package aggregate

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AggregateController struct {
	Service AggregateServiceAPI
}

// POST /api/aggregates/age-groups/rebuild
func (ac *AggregateController) RebuildAgeSummary(c *gin.Context) {
	res, err := ac.Service.RebuildAgeSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Age group summary rebuilt successfully",
		"result":  res,
	})
}

func (ac *AggregateController) PatientCounts(c *gin.Context) {
	recap, err := ac.Service.PatientCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Patient count recap fetched successfully",
		"recap":   recap,
	})
}

func (ac *AggregateController) GenderByDisorder(c *gin.Context) {
	recap, err := ac.Service.GenderByDisorder(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Gender recap fetched successfully",
		"recap":   recap,
	})
}
