package controllers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"claims-api/config"
	"claims-api/models"
)

var referencePattern = regexp.MustCompile(`^CLM-\d+-[A-Z0-9]{4}$`)

func TestSubmitClaimHappyPath(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/claims", validClaimPayload("submit-session"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	body := parseBody(t, w)
	if body["success"] != true {
		t.Errorf("Expected success true")
	}
	data := body["data"].(map[string]interface{})
	ref, _ := data["referenceNumber"].(string)
	if !referencePattern.MatchString(ref) {
		t.Errorf("Reference %q does not match expected format", ref)
	}
	if data["status"] != "new" {
		t.Errorf("Expected status new, got %v", data["status"])
	}

	saved, err := models.FindClaimBySession(config.DB, "submit-session")
	if err != nil || saved == nil {
		t.Fatalf("Expected claim persisted for session: %v", err)
	}
	if saved.IPAddress != "10.1.2.3" {
		t.Errorf("Expected forwarded IP to be recorded, got %q", saved.IPAddress)
	}
	if saved.Location != "Private Network" {
		t.Errorf("Expected private network location, got %q", saved.Location)
	}
	if saved.Source != "website" {
		t.Errorf("Expected source website, got %q", saved.Source)
	}
	if saved.SignedAt == nil {
		t.Errorf("Expected SignedAt to be stamped")
	}
}

func TestSubmitClaimReplaysDuplicate(t *testing.T) {
	r := setupTestRouter(t)

	first := doRequest(r, http.MethodPost, "/api/v1/claims", validClaimPayload("dup-session"), nil)
	if first.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", first.Code, first.Body.String())
	}
	firstRef := parseBody(t, first)["data"].(map[string]interface{})["referenceNumber"]

	second := doRequest(r, http.MethodPost, "/api/v1/claims", validClaimPayload("dup-session"), nil)
	if second.Code != http.StatusOK {
		t.Fatalf("Expected 200 replay, got %d: %s", second.Code, second.Body.String())
	}
	body := parseBody(t, second)
	if body["success"] != true {
		t.Errorf("Expected replay to report success")
	}
	secondRef := body["data"].(map[string]interface{})["referenceNumber"]
	if secondRef != firstRef {
		t.Errorf("Expected replay to return original reference %v, got %v", firstRef, secondRef)
	}

	var count int64
	if err := config.DB.Model(&models.Claim{}).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count claims: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one claim, got %d", count)
	}
}

func TestSubmitClaimConcurrentSameSession(t *testing.T) {
	r := setupTestRouter(t)

	type outcome struct {
		code int
		ref  string
		ok   bool
	}
	start := make(chan struct{})
	results := make(chan outcome, 2)

	// Two simultaneous submissions for one session: the unique index lets one
	// insert win and the loser replays the winner's receipt.
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			w := doRequest(r, http.MethodPost, "/api/v1/claims", validClaimPayload("race-session"), nil)
			var body struct {
				Success bool `json:"success"`
				Data    struct {
					ReferenceNumber string `json:"referenceNumber"`
				} `json:"data"`
			}
			json.Unmarshal(w.Body.Bytes(), &body)
			results <- outcome{code: w.Code, ref: body.Data.ReferenceNumber, ok: body.Success}
		}()
	}
	close(start)

	first, second := <-results, <-results
	for _, o := range []outcome{first, second} {
		if !o.ok {
			t.Fatalf("Expected both callers to succeed, got %d with ref %q", o.code, o.ref)
		}
		if o.code != http.StatusCreated && o.code != http.StatusOK {
			t.Fatalf("Expected 201 or 200, got %d", o.code)
		}
	}
	if first.code == second.code {
		t.Errorf("Expected one create and one replay, got %d and %d", first.code, second.code)
	}
	if first.ref == "" || first.ref != second.ref {
		t.Errorf("Expected both callers to share one reference, got %q and %q", first.ref, second.ref)
	}

	var count int64
	if err := config.DB.Model(&models.Claim{}).Where("session_id = ?", "race-session").Count(&count).Error; err != nil {
		t.Fatalf("Failed to count claims: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly one persisted claim, got %d", count)
	}
}

func TestSubmitClaimCleansUpDraft(t *testing.T) {
	r := setupTestRouter(t)

	if _, err := models.UpsertDraft(config.DB, "cleanup-session", models.FormData{"firstName": "Jane"}, 1, "", "", ""); err != nil {
		t.Fatalf("Failed to seed draft: %v", err)
	}

	w := doRequest(r, http.MethodPost, "/api/v1/claims", validClaimPayload("cleanup-session"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	draft, err := models.FindDraftBySession(config.DB, "cleanup-session")
	if err != nil {
		t.Fatalf("Failed to look up draft: %v", err)
	}
	if draft != nil {
		t.Errorf("Expected draft to be removed after submission")
	}
}

func TestSubmitClaimValidationErrors(t *testing.T) {
	r := setupTestRouter(t)

	payload := validClaimPayload("invalid-session")
	payload["email"] = "not-an-email"
	payload["termsAccepted"] = false

	w := doRequest(r, http.MethodPost, "/api/v1/claims", payload, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	body := parseBody(t, w)
	details, ok := body["details"].([]interface{})
	if !ok || len(details) == 0 {
		t.Fatalf("Expected per-field details, got %v", body)
	}
	fields := make(map[string]bool)
	for _, d := range details {
		entry := d.(map[string]interface{})
		fields[entry["field"].(string)] = true
	}
	if !fields["email"] || !fields["termsAccepted"] {
		t.Errorf("Expected email and termsAccepted errors, got %v", fields)
	}

	// Nothing persisted on a rejected submission.
	var count int64
	config.DB.Model(&models.Claim{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no claims after rejection, got %d", count)
	}
}

func TestSubmitClaimRejectsMalformedBody(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/claims", "not-an-object", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", w.Code)
	}
}

func TestSubmitClaimIgnoresServerOwnedFields(t *testing.T) {
	r := setupTestRouter(t)

	payload := validClaimPayload("hostile-session")
	payload["status"] = "approved"
	payload["referenceNumber"] = "CLM-0-HACK"
	payload["isDraft"] = true
	payload["adminNotes"] = []map[string]string{{"note": "injected"}}

	w := doRequest(r, http.MethodPost, "/api/v1/claims", payload, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	saved, _ := models.FindClaimBySession(config.DB, "hostile-session")
	if saved == nil {
		t.Fatalf("Expected claim to be persisted")
	}
	if saved.Status != models.StatusNew {
		t.Errorf("Expected server-assigned status new, got %q", saved.Status)
	}
	if saved.ReferenceNumber == "CLM-0-HACK" {
		t.Errorf("Expected client-sent reference to be discarded")
	}
	if saved.IsDraft {
		t.Errorf("Expected isDraft to be forced false")
	}
	if len(saved.AdminNotes) != 0 {
		t.Errorf("Expected client-sent admin notes to be discarded")
	}
}

func TestSubmitClaimWithoutSession(t *testing.T) {
	r := setupTestRouter(t)

	payload := validClaimPayload("")
	w := doRequest(r, http.MethodPost, "/api/v1/claims", payload, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for anonymous submission, got %d: %s", w.Code, w.Body.String())
	}

	var claim models.Claim
	if err := config.DB.First(&claim).Error; err != nil {
		t.Fatalf("Failed to load claim: %v", err)
	}
	if claim.SessionID != nil {
		t.Errorf("Expected empty session to be stored as NULL, got %q", *claim.SessionID)
	}
}

func TestGetClaimByReference(t *testing.T) {
	r := setupTestRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/claims", validClaimPayload("lookup-session"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	ref := parseBody(t, w)["data"].(map[string]interface{})["referenceNumber"].(string)

	lookup := doRequest(r, http.MethodGet, "/api/v1/claims/reference/"+ref, nil, nil)
	if lookup.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", lookup.Code, lookup.Body.String())
	}
	data := parseBody(t, lookup)["data"].(map[string]interface{})
	if data["reference"] != ref || data["status"] != "new" || data["firstName"] != "Jane" {
		t.Errorf("Unexpected status view: %v", data)
	}
	// Restricted projection only.
	if _, leaked := data["email"]; leaked {
		t.Errorf("Expected email to stay out of the public status view")
	}

	missing := doRequest(r, http.MethodGet, "/api/v1/claims/reference/CLM-0-XXXX", nil, nil)
	if missing.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown reference, got %d", missing.Code)
	}
}

func TestGetAllClaimsStripsSensitiveFields(t *testing.T) {
	r := setupTestRouter(t)

	if w := doRequest(r, http.MethodPost, "/api/v1/claims", validClaimPayload("list-session"), map[string]string{"User-Agent": "test-agent"}); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}

	list := doRequest(r, http.MethodGet, "/api/v1/claims", nil, nil)
	if list.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", list.Code, list.Body.String())
	}
	body := parseBody(t, list)
	data := body["data"].([]interface{})
	if len(data) != 1 {
		t.Fatalf("Expected 1 claim listed, got %d", len(data))
	}
	claim := data[0].(map[string]interface{})
	if sig, ok := claim["signature"].(string); ok && sig != "" {
		t.Errorf("Expected signature stripped from list output")
	}
	if ua, ok := claim["userAgent"].(string); ok && ua != "" {
		t.Errorf("Expected user agent stripped from list output")
	}

	pagination := body["pagination"].(map[string]interface{})
	if pagination["total"].(float64) != 1 || pagination["page"].(float64) != 1 {
		t.Errorf("Unexpected pagination: %v", pagination)
	}
}

func TestGetAllClaimsStatusFilter(t *testing.T) {
	r := setupTestRouter(t)

	for _, s := range []string{models.StatusNew, models.StatusApproved, models.StatusApproved} {
		c := models.Claim{FirstName: "Jane", LastName: "Doe", Status: s}
		if err := config.DB.Create(&c).Error; err != nil {
			t.Fatalf("Failed to seed claim: %v", err)
		}
	}

	w := doRequest(r, http.MethodGet, "/api/v1/claims?status=approved", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := parseBody(t, w)
	if got := len(body["data"].([]interface{})); got != 2 {
		t.Errorf("Expected 2 approved claims, got %d", got)
	}
}

func TestUpdateClaimStatusWithNote(t *testing.T) {
	r := setupTestRouter(t)

	claim := models.Claim{FirstName: "Jane", LastName: "Doe"}
	if err := config.DB.Create(&claim).Error; err != nil {
		t.Fatalf("Failed to seed claim: %v", err)
	}

	w := doRequest(r, http.MethodPatch, "/api/v1/claims/"+itoa(claim.ClaimID)+"/status", map[string]interface{}{
		"status":    "reviewing",
		"note":      "Called claimant",
		"adminUser": "admin@example.com",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var reloaded models.Claim
	if err := config.DB.First(&reloaded, claim.ClaimID).Error; err != nil {
		t.Fatalf("Failed to reload claim: %v", err)
	}
	if reloaded.Status != models.StatusReviewing {
		t.Errorf("Expected status reviewing, got %q", reloaded.Status)
	}
	if len(reloaded.AdminNotes) != 1 || reloaded.AdminNotes[0].Note != "Called claimant" {
		t.Errorf("Expected note appended, got %v", reloaded.AdminNotes)
	}
	if reloaded.AdminNotes[0].CreatedBy != "admin@example.com" {
		t.Errorf("Expected note author, got %q", reloaded.AdminNotes[0].CreatedBy)
	}
}

func TestUpdateClaimStatusRejectsUnknownStatus(t *testing.T) {
	r := setupTestRouter(t)

	claim := models.Claim{FirstName: "Jane"}
	if err := config.DB.Create(&claim).Error; err != nil {
		t.Fatalf("Failed to seed claim: %v", err)
	}

	w := doRequest(r, http.MethodPatch, "/api/v1/claims/"+itoa(claim.ClaimID)+"/status", map[string]interface{}{
		"status": "archived",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", w.Code)
	}
}

func TestDeleteClaim(t *testing.T) {
	r := setupTestRouter(t)

	claim := models.Claim{FirstName: "Jane", LastName: "Doe"}
	if err := config.DB.Create(&claim).Error; err != nil {
		t.Fatalf("Failed to seed claim: %v", err)
	}

	w := doRequest(r, http.MethodDelete, "/api/v1/claims/"+itoa(claim.ClaimID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	missing := doRequest(r, http.MethodGet, "/api/v1/claims/"+itoa(claim.ClaimID), nil, nil)
	if missing.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", missing.Code)
	}

	again := doRequest(r, http.MethodDelete, "/api/v1/claims/"+itoa(claim.ClaimID), nil, nil)
	if again.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for repeated delete, got %d", again.Code)
	}
}

func TestExportClaimsCSV(t *testing.T) {
	r := setupTestRouter(t)

	claim := models.Claim{
		FirstName:    "Jane",
		LastName:     `Doe, "the second"`,
		Email:        "jane@example.com",
		AddressLine1: "12 High Street, Flat 3",
		Lenders:      models.StringList{"Black Horse", "Santander"},
	}
	if err := config.DB.Create(&claim).Error; err != nil {
		t.Fatalf("Failed to seed claim: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/claims/export/all", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Expected text/csv content type, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "claims-export-") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Reference Number,") {
		t.Errorf("Unexpected header row: %q", lines[0])
	}
	// Commas and quotes in values must be escaped, not split into columns.
	if !strings.Contains(lines[1], `"Doe, ""the second"""`) {
		t.Errorf("Expected quoted last name in row: %q", lines[1])
	}
	if !strings.Contains(lines[1], "Black Horse; Santander") {
		t.Errorf("Expected joined lenders in row: %q", lines[1])
	}
}
