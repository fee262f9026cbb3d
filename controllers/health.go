// controllers/health.go
package controllers

import (
	"net/http"
	"time"

	"claims-api/config"
	"claims-api/middleware"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports service and database state plus what the server sees of
// the caller.
func HealthCheck(c *gin.Context) {
	dbStatus := "disconnected"
	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil && sqlDB.Ping() == nil {
			dbStatus = "connected"
		}
	}

	location := middleware.GetIPLocation(c)
	if location == "" {
		location = "Unknown"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "claims-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  dbStatus,
		"ip":        middleware.GetRealIP(c),
		"location":  location,
	})
}
