package hospital

import (
	"errors"
	"net/http"

	"hemophilia-registry-api/internal/record"

	"github.com/gin-gonic/gin"
)

type HospitalController struct {
	Service HospitalServiceAPI
}

func (hc *HospitalController) GetAllHospitals(c *gin.Context) {
	hospitals, err := hc.Service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Hospitals fetched successfully",
		"hospitals": hospitals,
	})
}

func (hc *HospitalController) UpsertHospitals(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := hc.Service.Upsert(c.Request.Context(), req.Hospitals)
	if err != nil {
		var ve *record.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Hospitals saved successfully",
		"saved":   n,
	})
}

func (hc *HospitalController) RenameHospital(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := hc.Service.Rename(c.Request.Context(), req.OldName, req.NewName)
	if err != nil {
		var (
			taken *NameTakenError
			ve    *record.ValidationError
		)
		switch {
		case IsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &taken):
			c.JSON(http.StatusConflict, gin.H{"error": taken.Error()})
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Hospital renamed successfully",
	})
}
