// controllers/dashboard.go
package controllers

import (
	"net/http"
	"strconv"

	"claims-api/config"
	"claims-api/models"

	"github.com/gin-gonic/gin"
)

// GetDashboardMetrics combines claim and draft counters into the headline
// dashboard numbers.
func GetDashboardMetrics(c *gin.Context) {
	claimMetrics, err := models.GetClaimMetrics(config.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch dashboard metrics"})
		return
	}

	draftStats, err := models.GetDraftStats(config.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch dashboard metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"totalClaims":    claimMetrics.Total,
			"claimsToday":    claimMetrics.RecentSubmissions,
			"totalDrafts":    draftStats.Total,
			"draftsToday":    draftStats.Today,
			"conversionRate": claimMetrics.ConversionRate,
			"statusDistribution": gin.H{
				"new":        claimMetrics.New,
				"processing": claimMetrics.Processing,
				"approved":   claimMetrics.Approved,
				"completed":  claimMetrics.Completed,
			},
			"averageDraftCompletion": draftStats.AverageCompletion,
		},
	})
}

// GetRecentActivity returns the latest submissions and active drafts side by
// side for the dashboard feed.
func GetRecentActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	var claims []models.Claim
	if err := config.DB.Where("is_draft = ?", false).
		Select("claim_id", "reference_number", "first_name", "last_name", "email", "status", "created_at", "completion_percentage").
		Order("created_at DESC").
		Limit(limit).
		Find(&claims).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch recent activity"})
		return
	}

	var drafts []models.Draft
	if err := config.DB.Order("last_saved DESC").Limit(limit).Find(&drafts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch recent activity"})
		return
	}

	formattedDrafts := make([]gin.H, 0, len(drafts))
	for i := range drafts {
		d := &drafts[i]
		firstName := d.FormData.String("firstName")
		if firstName == "" {
			firstName = "Anonymous"
		}
		formattedDrafts = append(formattedDrafts, gin.H{
			"id":                   d.DraftID,
			"sessionId":            d.SessionID,
			"firstName":            firstName,
			"lastName":             d.FormData.String("lastName"),
			"email":                d.FormData.String("email"),
			"phone":                d.FormData.String("phone"),
			"location":             d.Location,
			"completionPercentage": d.CompletionPercentage,
			"lastSaved":            d.LastSaved,
			"currentStep":          d.CurrentStep,
			"status":               "drafting",
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"claims": claims,
			"drafts": formattedDrafts,
		},
	})
}
