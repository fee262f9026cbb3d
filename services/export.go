package services

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"claims-api/models"

	"github.com/google/uuid"
)

// exportDir returns the directory each submitted claim is mirrored into as a
// single-row CSV file.
func exportDir() string {
	if dir := os.Getenv("EXPORT_PATH"); dir != "" {
		return dir
	}
	return filepath.Join("exports", "submissions")
}

var claimExportHeaders = []string{
	"Reference Number",
	"First Name",
	"Last Name",
	"Email",
	"Phone",
	"Date of Birth",
	"Address Line 1",
	"City",
	"Postcode",
	"Status",
	"Submitted At",
	"IP Address",
	"Location",
}

func claimExportRow(claim *models.Claim) []string {
	return []string{
		claim.ReferenceNumber,
		claim.FirstName,
		claim.LastName,
		claim.Email,
		claim.Phone,
		claim.DateOfBirth,
		claim.AddressLine1,
		claim.City,
		claim.Postcode,
		claim.Status,
		claim.CreatedAt.Format(time.RFC3339),
		claim.IPAddress,
		claim.Location,
	}
}

// ExportClaimMirror writes a one-row CSV copy of the claim into the export
// directory and returns the file path.
func ExportClaimMirror(claim *models.Claim) (string, error) {
	dir := exportDir()
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	ref := claim.ReferenceNumber
	if ref == "" {
		ref = "NO-REF"
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339))
	name := fmt.Sprintf("submission-%s-%s-%s.csv", ref, stamp, uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(claimExportHeaders); err != nil {
		return "", err
	}
	if err := w.Write(claimExportRow(claim)); err != nil {
		return "", err
	}
	w.Flush()
	return path, w.Error()
}

// DispatchClaimExport mirrors the claim off the request path. A failed export
// never affects the submission response.
func DispatchClaimExport(claim models.Claim) {
	go func() {
		path, err := ExportClaimMirror(&claim)
		if err != nil {
			log.Printf("Background export failed for %s: %v", claim.ReferenceNumber, err)
			return
		}
		log.Printf("Exported submission to %s", path)
	}()
}
