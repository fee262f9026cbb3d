package controllers

import (
	"net/http"
	"testing"

	"claims-api/config"
	"claims-api/models"

	"github.com/gin-gonic/gin"
)

func setupDashboardRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	config.DB = openTestDB(t)

	r := gin.New()
	r.GET("/api/v1/dashboard/metrics", GetDashboardMetrics)
	r.GET("/api/v1/dashboard/recent", GetRecentActivity)
	return r
}

func TestGetDashboardMetrics(t *testing.T) {
	r := setupDashboardRouter(t)

	for _, s := range []string{models.StatusNew, models.StatusCompleted} {
		c := models.Claim{FirstName: "Jane", Status: s}
		if err := config.DB.Create(&c).Error; err != nil {
			t.Fatalf("Failed to seed claim: %v", err)
		}
	}
	if _, err := models.UpsertDraft(config.DB, "dash-session", models.FormData{"firstName": "Jane"}, 1, "", "", ""); err != nil {
		t.Fatalf("Failed to seed draft: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := parseBody(t, w)["data"].(map[string]interface{})
	if data["totalClaims"].(float64) != 2 || data["totalDrafts"].(float64) != 1 {
		t.Errorf("Unexpected totals: %v", data)
	}
	if data["conversionRate"].(float64) != 50.0 {
		t.Errorf("Expected conversion rate 50.0, got %v", data["conversionRate"])
	}
	dist := data["statusDistribution"].(map[string]interface{})
	if dist["new"].(float64) != 1 || dist["completed"].(float64) != 1 {
		t.Errorf("Unexpected status distribution: %v", dist)
	}
}

func TestGetRecentActivity(t *testing.T) {
	r := setupDashboardRouter(t)

	claim := models.Claim{FirstName: "Jane", LastName: "Doe", Signature: "Jane Doe"}
	if err := config.DB.Create(&claim).Error; err != nil {
		t.Fatalf("Failed to seed claim: %v", err)
	}
	if _, err := models.UpsertDraft(config.DB, "recent-session", models.FormData{}, 1, "", "", ""); err != nil {
		t.Fatalf("Failed to seed draft: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/recent", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := parseBody(t, w)["data"].(map[string]interface{})
	claims := data["claims"].([]interface{})
	drafts := data["drafts"].([]interface{})
	if len(claims) != 1 || len(drafts) != 1 {
		t.Fatalf("Expected one claim and one draft, got %d/%d", len(claims), len(drafts))
	}

	// The claim feed is a narrow projection; signatures never ride along.
	entry := claims[0].(map[string]interface{})
	if sig, ok := entry["signature"].(string); ok && sig != "" {
		t.Errorf("Expected signature excluded from activity feed")
	}

	draft := drafts[0].(map[string]interface{})
	if draft["firstName"] != "Anonymous" {
		t.Errorf("Expected Anonymous fallback, got %v", draft["firstName"])
	}
	if draft["status"] != "drafting" {
		t.Errorf("Expected drafting status, got %v", draft["status"])
	}
}
