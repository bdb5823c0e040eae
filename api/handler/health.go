package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guardline/brandscan/models"
)

// Health returns a handler for GET /api/v1/health.
func Health(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      "healthy",
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			ActiveScans: ActiveScans(),
			Version:     "0.1.0",
		})
	}
}
