package database

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) PingResult
}

type HealthController struct {
	Pinger Pinger
}

func (hc *HealthController) Health(c *gin.Context) {
	res := hc.Pinger.Ping(c.Request.Context())
	if !res.OK {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
