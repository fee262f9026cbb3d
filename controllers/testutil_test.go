package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"claims-api/config"
	"claims-api/middleware"
	"claims-api/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	// busy_timeout lets concurrent writers wait for the lock instead of
	// failing, so a same-session race surfaces as a unique-index violation.
	dsn := fmt.Sprintf("file:ctrl_%s?mode=memory&cache=shared&_busy_timeout=2000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Claim{}, &models.Draft{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// setupTestRouter wires the public and admin handlers over a fresh database,
// with the IP tracking middleware in place like production.
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("EXPORT_PATH", t.TempDir())
	config.DB = openTestDB(t)

	r := gin.New()
	r.Use(middleware.TrackIPAndLocation())

	api := r.Group("/api/v1")
	api.POST("/claims", SubmitClaim)
	api.GET("/claims/reference/:reference", GetClaimByReference)
	api.GET("/claims", GetAllClaims)
	api.GET("/claims/export/all", ExportClaims)
	api.GET("/claims/:id", GetClaimByID)
	api.PATCH("/claims/:id/status", UpdateClaimStatus)
	api.DELETE("/claims/:id", DeleteClaim)

	drafts := api.Group("/drafts")
	drafts.POST("/auto-save", AutoSaveDraft)
	drafts.GET("/get-draft", GetDraft)
	drafts.DELETE("/delete-draft", DeleteDraft)
	drafts.GET("/list", ListDrafts)
	drafts.GET("/stats", GetDraftStats)
	drafts.GET("/export", ExportDrafts)
	drafts.DELETE("/:id", DeleteDraftByID)

	return r
}

// doRequest runs one request through the router. A private forwarded IP is
// always attached so location resolution short-circuits without the network.
func doRequest(r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "10.1.2.3")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
	return body
}

func itoa(id int) string {
	return fmt.Sprintf("%d", id)
}

func validClaimPayload(sessionID string) map[string]interface{} {
	return map[string]interface{}{
		"title":           "Ms",
		"firstName":       "Jane",
		"lastName":        "Doe",
		"email":           "jane.doe@example.com",
		"phone":           "07700900123",
		"dateOfBirth":     "1985-06-15",
		"addressLine1":    "12 High Street",
		"city":            "Leeds",
		"postcode":        "LS1 4AB",
		"lenders":         []string{"Black Horse", "Santander"},
		"notBankrupt":     true,
		"termsAccepted":   true,
		"privacyAccepted": true,
		"signature":       "Jane Doe",
		"sessionId":       sessionID,
	}
}
