// controllers/draft.go
package controllers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"claims-api/config"
	"claims-api/middleware"
	"claims-api/models"
	"claims-api/services"
	"claims-api/utils"

	"github.com/gin-gonic/gin"
)

// sessionFromRequest reads the client session identifier from the X-Session-Id
// header or the sessionId query parameter.
func sessionFromRequest(c *gin.Context) string {
	if sid := c.GetHeader("X-Session-Id"); sid != "" {
		return sid
	}
	return c.Query("sessionId")
}

// ===================== PUBLIC (form client) =====================

type autoSaveRequest struct {
	SessionID   string          `json:"sessionId"`
	FormData    models.FormData `json:"formData"`
	CurrentStep int             `json:"currentStep"`
}

// AutoSaveDraft creates or replaces the draft for a session. Partial form bags
// are fine; nothing is validated at this layer.
func AutoSaveDraft(c *gin.Context) {
	var req autoSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	sessionID := sessionFromRequest(c)
	if sessionID == "" {
		sessionID = req.SessionID
	}
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Session ID required"})
		return
	}

	ip := middleware.GetRealIP(c)
	location := middleware.GetIPLocation(c)
	if location == "" || location == "Resolving..." || location == "Unknown" {
		location = services.Geo.ResolveLocation(c.Request.Context(), ip)
	}

	draft, err := models.UpsertDraft(config.DB, sessionID, req.FormData, req.CurrentStep, ip, location, c.GetHeader("User-Agent"))
	if err != nil {
		log.Printf("Failed to save draft: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save draft"})
		return
	}

	log.Printf("Draft auto-saved for session: %s", truncateSession(sessionID))

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              "Draft saved",
		"sessionId":            sessionID,
		"lastSaved":            draft.LastSaved,
		"completionPercentage": draft.CompletionPercentage,
	})
}

// GetDraft returns the stored draft for a session. An absent draft is a
// normal result, not a failure.
func GetDraft(c *gin.Context) {
	sessionID := sessionFromRequest(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Session ID required"})
		return
	}

	draft, err := models.FindDraftBySession(config.DB, sessionID)
	if err != nil {
		log.Printf("Failed to fetch draft: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch draft"})
		return
	}

	if draft == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"found":   false,
			"message": "No draft found",
		})
		return
	}

	log.Printf("Draft found for session: %s", truncateSession(sessionID))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"found":   true,
		"draft": gin.H{
			"formData":             draft.FormData,
			"lastSaved":            draft.LastSaved,
			"completionPercentage": draft.CompletionPercentage,
			"currentStep":          draft.CurrentStep,
		},
	})
}

// DeleteDraft removes the session's draft. Idempotent: deleting an absent
// draft succeeds.
func DeleteDraft(c *gin.Context) {
	sessionID := sessionFromRequest(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Session ID required"})
		return
	}

	if err := models.DeleteDraftBySession(config.DB, sessionID); err != nil {
		log.Printf("Failed to delete draft: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete draft"})
		return
	}

	log.Printf("Draft deleted for session: %s", truncateSession(sessionID))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Draft deleted"})
}

// ===================== ADMIN =====================

// ListDrafts pages through drafts newest-first, projecting the identity
// fields out of the form bag (flat layout first, legacy nested second).
func ListDrafts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := config.DB.Model(&models.Draft{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list drafts"})
		return
	}

	var drafts []models.Draft
	if err := config.DB.Order("last_saved DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&drafts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list drafts"})
		return
	}

	formatted := make([]gin.H, 0, len(drafts))
	for i := range drafts {
		d := &drafts[i]
		firstName := d.FormData.String("firstName")
		if firstName == "" {
			firstName = "Anonymous"
		}
		formatted = append(formatted, gin.H{
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
			"status":               d.Status,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"drafts":  formatted,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// GetDraftStats serves the dashboard's draft counters.
func GetDraftStats(c *gin.Context) {
	stats, err := models.GetDraftStats(config.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get draft statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// DeleteDraftByID removes one draft by primary key. Explicit admin action.
func DeleteDraftByID(c *gin.Context) {
	var draft models.Draft
	if err := config.DB.Where("draft_id = ?", c.Param("id")).First(&draft).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Draft not found"})
		return
	}

	if err := config.DB.Delete(&draft).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete draft"})
		return
	}

	log.Printf("Draft deleted by admin: %d", draft.DraftID)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Draft deleted successfully"})
}

// draftsExportHeaders is the fixed export column set: every form field plus
// metadata, one row per draft.
var draftsExportHeaders = []string{
	"Session ID",
	// Section 1: Personal Details
	"Title",
	"First Name",
	"Last Name",
	"Email",
	"Phone",
	"Date of Birth",
	// Section 2: Address
	"Address Line 1",
	"Address Line 2",
	"City",
	"County",
	"Postcode",
	"Has Previous Address",
	"Prev Address Line 1",
	"Prev City",
	"Prev Postcode",
	// Section 3: Claim/Finance Details
	"Had Car Finance",
	"Finance Type",
	"Finance Period",
	"Finance Period Start",
	"Finance Period End",
	"Commission Disclosed",
	// Section 4: Consent
	"Terms Accepted",
	"Privacy Accepted",
	"Marketing Opt-In",
	"Has Signature",
	// Metadata
	"Location",
	"Completion %",
	"Status",
	"Last Saved",
	"Created At",
}

// ExportDrafts streams every draft as one flat CSV row.
func ExportDrafts(c *gin.Context) {
	var drafts []models.Draft
	if err := config.DB.Order("last_saved DESC").Find(&drafts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to export drafts"})
		return
	}

	rows := make([][]string, 0, len(drafts))
	for i := range drafts {
		d := &drafts[i]
		fd := d.FormData
		dob := fd.String("dob")
		if dob == "" {
			dob = fd.String("dateOfBirth")
		}
		rows = append(rows, []string{
			d.SessionID,
			fd.String("title"),
			fd.String("firstName"),
			fd.String("lastName"),
			fd.String("email"),
			fd.String("phone"),
			dob,
			fd.String("addressLine1"),
			fd.String("addressLine2"),
			fd.String("city"),
			fd.String("county"),
			fd.String("postcode"),
			utils.YesNo(fd.Bool("hasPreviousAddress")),
			fd.String("prevAddressLine1"),
			fd.String("prevCity"),
			fd.String("prevPostcode"),
			utils.YesNo(fd.Bool("hadCarFinance")),
			fd.String("financeType"),
			fd.String("financePeriod"),
			fd.String("financePeriodStart"),
			fd.String("financePeriodEnd"),
			fd.String("wasCommissionDisclosed"),
			utils.YesNo(fd.Bool("termsAccepted")),
			utils.YesNo(fd.Bool("privacyAccepted")),
			utils.YesNo(fd.Bool("marketingOptIn")),
			utils.YesNo(fd.Has("signature")),
			d.Location,
			strconv.Itoa(d.CompletionPercentage),
			d.Status,
			utils.CSVTime(d.LastSaved),
			utils.CSVTime(d.CreatedAt),
		})
	}

	content, err := utils.BuildCSV(draftsExportHeaders, rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to export drafts"})
		return
	}

	log.Printf("Exported %d drafts to CSV", len(drafts))

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=drafts-export-%d.csv", time.Now().UnixMilli()))
	c.Data(http.StatusOK, "text/csv", content)
}
