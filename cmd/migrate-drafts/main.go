// Command migrate-drafts flattens legacy nested form bags
// (personalDetails/address/claimDetails/consent groups) into the current flat
// layout, so the nested-fallback read path goes dead for existing records.
package main

import (
	"fmt"
	"log"

	"claims-api/config"
	"claims-api/models"

	"github.com/joho/godotenv"
)

// legacyGroups are the grouped objects older drafts carried.
var legacyGroups = []string{"personalDetails", "address", "claimDetails", "consent"}

// flatten moves every field the reader would find via the nested fallback to
// its flat key, then drops the legacy groups. Flat values already present win.
func flatten(data models.FormData) (models.FormData, bool) {
	changed := false
	for _, field := range []string{
		"title", "firstName", "lastName", "email", "phone", "dob", "dateOfBirth",
		"addressLine1", "addressLine2", "city", "county", "postcode",
		"hadCarFinance", "financeType", "financePeriod", "financePeriodStart",
		"financePeriodEnd", "wasCommissionDisclosed",
		"termsAccepted", "privacyAccepted", "marketingOptIn", "signature",
	} {
		if _, ok := data[field]; ok {
			continue
		}
		if v := data.Field(field); v != nil {
			data[field] = v
			changed = true
		}
	}
	for _, group := range legacyGroups {
		if _, ok := data[group]; ok {
			delete(data, group)
			changed = true
		}
	}
	return data, changed
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	config.InitDB()

	var drafts []models.Draft
	if err := config.DB.Find(&drafts).Error; err != nil {
		log.Fatal("Failed to load drafts:", err)
	}
	fmt.Printf("Found %d drafts to check.\n", len(drafts))

	migrated, skipped := 0, 0
	for i := range drafts {
		d := &drafts[i]
		flat, changed := flatten(d.FormData)
		if !changed {
			skipped++
			continue
		}
		d.FormData = flat
		// Update the column directly so last_saved keeps its original value.
		if err := config.DB.Model(d).UpdateColumn("form_data", d.FormData).Error; err != nil {
			log.Printf("Failed to migrate draft %d: %v", d.DraftID, err)
			continue
		}
		migrated++
		if migrated%10 == 0 {
			fmt.Printf("Migrated %d drafts...\n", migrated)
		}
	}

	fmt.Println("Migration complete.")
	fmt.Printf("Total drafts: %d\n", len(drafts))
	fmt.Printf("Migrated: %d\n", migrated)
	fmt.Printf("Skipped (already flat): %d\n", skipped)
}
