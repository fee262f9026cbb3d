// controllers/claim.go
package controllers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"claims-api/config"
	"claims-api/middleware"
	"claims-api/models"
	"claims-api/services"
	"claims-api/utils"

	"github.com/gin-gonic/gin"
)

// ===================== SUBMISSION =====================

// SubmitClaim is the single entry point turning a (session, payload) pair into
// exactly one durable claim. Order matters: validate, duplicate guard, enrich,
// create, then best-effort cleanup and side effects. Everything after the
// create must never change the response already owed to the client.
func SubmitClaim(c *gin.Context) {
	var claim models.Claim
	if err := c.ShouldBindJSON(&claim); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	// Server-owned fields are never taken from the client.
	claim.ClaimID = 0
	claim.ReferenceNumber = ""
	claim.Status = models.StatusNew
	claim.IsDraft = false
	claim.AdminNotes = nil
	claim.CRMSynced = false
	claim.CRMLeadID = ""
	claim.CRMSyncDate = nil
	claim.CRMSyncError = ""
	claim.SignedAt = nil

	if claim.SessionID != nil && *claim.SessionID == "" {
		claim.SessionID = nil
	}

	// Validation short-circuits before any store access. No partial writes.
	if errs := utils.ValidateClaim(&claim); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"details": errs,
		})
		return
	}

	// Duplicate guard: a session that already produced a claim replays the
	// original success instead of creating a second record.
	if claim.SessionID != nil {
		existing, err := models.FindClaimBySession(config.DB, *claim.SessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Failed to submit claim. Please try again.",
			})
			return
		}
		if existing != nil {
			log.Printf("Duplicate submission blocked: %s", existing.ReferenceNumber)
			replaySubmission(c, existing)
			return
		}
	}

	// Enrichment: server-observed provenance wins over anything client-sent.
	ip := middleware.GetRealIP(c)
	location := middleware.GetIPLocation(c)
	if location == "" || location == "Resolving..." {
		location = services.Geo.ResolveLocation(c.Request.Context(), ip)
	}
	claim.IPAddress = ip
	claim.Location = location
	claim.UserAgent = c.GetHeader("User-Agent")
	claim.Referrer = firstNonEmpty(c.GetHeader("Referrer"), c.GetHeader("Referer"))
	claim.Source = "website"

	// Durability boundary.
	if err := config.DB.Create(&claim).Error; err != nil {
		// Loser of a same-session race: the unique index rejected the insert.
		// Re-fetch the winner and replay it as success.
		if models.IsDuplicateKey(err) && claim.SessionID != nil {
			if winner, ferr := models.FindClaimBySession(config.DB, *claim.SessionID); ferr == nil && winner != nil {
				log.Printf("Duplicate submission blocked: %s", winner.ReferenceNumber)
				replaySubmission(c, winner)
				return
			}
		}
		log.Printf("Error submitting claim: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to submit claim. Please try again.",
		})
		return
	}

	log.Printf("New claim created: %s", claim.ReferenceNumber)

	// Draft cleanup is non-fatal: an orphaned draft can never produce a second
	// claim past the duplicate guard, and its own expiry removes it eventually.
	if claim.SessionID != nil {
		if err := models.DeleteDraftBySession(config.DB, *claim.SessionID); err != nil {
			log.Printf("Draft cleanup failed (non-fatal): %v", err)
		} else {
			log.Printf("Cleaned up draft for session: %s", truncateSession(*claim.SessionID))
		}
	}

	// Fire-and-forget side effects.
	services.DispatchClaimExport(claim)
	services.DispatchClaimConfirmation(claim)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Claim submitted successfully",
		"data": gin.H{
			"id":              claim.ClaimID,
			"referenceNumber": claim.ReferenceNumber,
			"status":          claim.Status,
			"submittedAt":     claim.CreatedAt,
		},
	})
}

// replaySubmission answers a repeated submission exactly like a fresh success.
func replaySubmission(c *gin.Context, claim *models.Claim) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Your claim has already been submitted.",
		"data": gin.H{
			"id":              claim.ClaimID,
			"referenceNumber": claim.ReferenceNumber,
			"status":          claim.Status,
			"submittedAt":     claim.CreatedAt,
		},
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateSession(sessionID string) string {
	if len(sessionID) > 20 {
		return sessionID[:20] + "..."
	}
	return sessionID
}

// ===================== PUBLIC STATUS LOOKUP =====================

// GetClaimByReference serves claimant self-service status checks with a
// restricted projection.
func GetClaimByReference(c *gin.Context) {
	view, err := models.FindClaimByReference(config.DB, c.Param("reference"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch claim"})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Claim not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// ===================== ADMIN =====================

var claimSortColumns = map[string]string{
	"createdAt":            "created_at",
	"status":               "status",
	"completionPercentage": "completion_percentage",
	"lastName":             "last_name",
}

// GetAllClaims lists claims with status filtering, pagination and sorting.
// Signature images and user agents are stripped from list output.
func GetAllClaims(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	sort := c.DefaultQuery("sort", "-createdAt")
	includeDrafts := c.DefaultQuery("includeDrafts", "false") == "true"

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := config.DB.Model(&models.Claim{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if !includeDrafts {
		query = query.Where("is_draft = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch claims"})
		return
	}

	order := "created_at DESC"
	key := sort
	desc := false
	if len(key) > 0 && key[0] == '-' {
		desc = true
		key = key[1:]
	}
	if col, ok := claimSortColumns[key]; ok {
		order = col
		if desc {
			order += " DESC"
		}
	}

	var claims []models.Claim
	if err := query.Order(order).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&claims).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch claims"})
		return
	}

	// Sensitive fields stay out of list responses.
	for i := range claims {
		claims[i].Signature = ""
		claims[i].UserAgent = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    claims,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// GetClaimByID returns one full claim record.
func GetClaimByID(c *gin.Context) {
	var claim models.Claim
	if err := config.DB.Where("claim_id = ?", c.Param("id")).First(&claim).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Claim not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": claim})
}

// UpdateClaimStatus sets the status and optionally appends an admin note. Any
// valid status value is accepted; the lifecycle order is not enforced.
func UpdateClaimStatus(c *gin.Context) {
	type statusUpdateRequest struct {
		Status    string `json:"status"`
		Note      string `json:"note"`
		AdminUser string `json:"adminUser"`
	}

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	if !models.IsValidClaimStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid status"})
		return
	}

	var claim models.Claim
	if err := config.DB.Where("claim_id = ?", c.Param("id")).First(&claim).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Claim not found"})
		return
	}

	claim.Status = req.Status
	if req.Note != "" {
		author := req.AdminUser
		if author == "" {
			author = "admin"
		}
		claim.AppendAdminNote(req.Note, author)
	}

	if err := config.DB.Save(&claim).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update claim"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Claim status updated",
		"data":    claim,
	})
}

// GetClaimStats serves the admin dashboard counters.
func GetClaimStats(c *gin.Context) {
	metrics, err := models.GetClaimMetrics(config.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"claims": metrics,
			"today":  metrics.RecentSubmissions,
		},
	})
}

// DeleteClaim removes a claim permanently. Explicit admin action only.
func DeleteClaim(c *gin.Context) {
	var claim models.Claim
	if err := config.DB.Where("claim_id = ?", c.Param("id")).First(&claim).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Claim not found"})
		return
	}

	if err := config.DB.Delete(&claim).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to delete claim"})
		return
	}

	log.Printf("Claim deleted: %s", claim.ReferenceNumber)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Claim deleted successfully",
		"data": gin.H{
			"id":              claim.ClaimID,
			"referenceNumber": claim.ReferenceNumber,
		},
	})
}

// ===================== CSV EXPORT =====================

var claimsExportHeaders = []string{
	"Reference Number",
	"Title",
	"First Name",
	"Last Name",
	"Email",
	"Phone",
	"Date of Birth",
	"Address Line 1",
	"Address Line 2",
	"City",
	"County",
	"Postcode",
	"Has Previous Address",
	"Prev Address Line 1",
	"Prev City",
	"Prev Postcode",
	"Lenders",
	"Vehicle Make",
	"Vehicle Model",
	"Estimated Value",
	"Not Bankrupt",
	"Terms Accepted",
	"Privacy Accepted",
	"Marketing Opt-In",
	"Status",
	"Completion %",
	"Source",
	"IP Address",
	"Location",
	"Created At",
}

// ExportClaims streams every non-draft claim as one CSV row per record.
func ExportClaims(c *gin.Context) {
	var claims []models.Claim
	if err := config.DB.Where("is_draft = ?", false).
		Order("created_at DESC").
		Find(&claims).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to export claims"})
		return
	}

	rows := make([][]string, 0, len(claims))
	for i := range claims {
		cl := &claims[i]
		rows = append(rows, []string{
			cl.ReferenceNumber,
			cl.Title,
			cl.FirstName,
			cl.LastName,
			cl.Email,
			cl.Phone,
			cl.DateOfBirth,
			cl.AddressLine1,
			cl.AddressLine2,
			cl.City,
			cl.County,
			cl.Postcode,
			utils.YesNo(cl.HasPreviousAddress),
			cl.PrevAddressLine1,
			cl.PrevCity,
			cl.PrevPostcode,
			strings.Join(cl.Lenders, "; "),
			cl.VehicleMake,
			cl.VehicleModel,
			cl.EstimatedValue,
			utils.YesNo(cl.NotBankrupt),
			utils.YesNo(cl.TermsAccepted),
			utils.YesNo(cl.PrivacyAccepted),
			utils.YesNo(cl.MarketingOptIn),
			cl.Status,
			strconv.Itoa(cl.CompletionPercentage),
			cl.Source,
			cl.IPAddress,
			cl.Location,
			utils.CSVTime(cl.CreatedAt),
		})
	}

	content, err := utils.BuildCSV(claimsExportHeaders, rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to export claims"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=claims-export-%d.csv", time.Now().UnixMilli()))
	c.Data(http.StatusOK, "text/csv", content)
}
