package models

import (
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

// DraftTTL is how long a draft may sit untouched before it is eligible for
// removal, measured from last_saved.
const DraftTTL = 30 * 24 * time.Hour

// Draft statuses
const (
	DraftStatusDraft     = "draft"
	DraftStatusConverted = "converted"
	DraftStatusExpired   = "expired"
)

// Draft holds in-progress, unsubmitted form state keyed by the client session.
// At most one draft exists per session id; every auto-save replaces the form
// bag wholesale.
type Draft struct {
	DraftID              int       `gorm:"primaryKey;column:draft_id" json:"draft_id"`
	SessionID            string    `gorm:"column:session_id;uniqueIndex;size:128;not null" json:"session_id"`
	FormType             string    `gorm:"column:form_type;default:claim" json:"form_type"`
	FormData             FormData  `gorm:"column:form_data;type:json" json:"form_data"`
	CurrentStep          int       `gorm:"column:current_step;default:1" json:"current_step"`
	CompletionPercentage int       `gorm:"column:completion_percentage;default:0" json:"completion_percentage"`
	IPAddress            string    `gorm:"column:ip_address" json:"ip_address"`
	Location             string    `gorm:"column:location" json:"location"`
	UserAgent            string    `gorm:"column:user_agent" json:"user_agent"`
	LastSaved            time.Time `gorm:"column:last_saved;index" json:"last_saved"`
	Status               string    `gorm:"column:status;default:draft" json:"status"`
	CreatedAt            time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Draft) TableName() string {
	return "drafts"
}

// draftTrackedFields is the fixed checklist the completion percentage is
// computed over, spanning the wizard steps: personal, address, finance, consent.
var draftTrackedFields = []string{
	"firstName", "lastName", "email", "phone", "dob",
	"addressLine1", "city", "postcode",
	"financeType", "financePeriodStart", "financePeriodEnd",
	"termsAccepted", "privacyAccepted",
}

// DraftCompletion computes round(100 * filled / tracked) for a form bag,
// tolerating both the flat and the legacy nested layout.
func DraftCompletion(data FormData) int {
	if len(data) == 0 {
		return 0
	}
	filled := 0
	for _, field := range draftTrackedFields {
		if data.Has(field) {
			filled++
			continue
		}
		// dob was renamed at one point; accept either spelling.
		if field == "dob" && data.Has("dateOfBirth") {
			filled++
		}
	}
	return int(math.Round(float64(filled) / float64(len(draftTrackedFields)) * 100))
}

// BeforeSave recomputes the completion percentage on every write.
func (d *Draft) BeforeSave(tx *gorm.DB) error {
	d.CompletionPercentage = DraftCompletion(d.FormData)
	return nil
}

// ExpiresAt returns when this draft becomes eligible for removal.
func (d *Draft) ExpiresAt() time.Time {
	return d.LastSaved.Add(DraftTTL)
}

// Expired reports whether the draft has passed its time-to-live.
func (d *Draft) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt())
}

// UpsertDraft creates or fully replaces the draft for a session. The form bag
// is overwritten, not merged; concurrent saves resolve last-write-wins. No
// required-field validation happens here — drafts are best-effort snapshots.
func UpsertDraft(db *gorm.DB, sessionID string, data FormData, currentStep int, ip, location, userAgent string) (*Draft, error) {
	now := time.Now()

	apply := func(d *Draft) {
		d.SessionID = sessionID
		d.FormData = data
		d.CurrentStep = currentStep
		d.Status = DraftStatusDraft
		d.IPAddress = ip
		d.Location = location
		d.UserAgent = userAgent
		d.LastSaved = now
	}

	var draft Draft
	err := db.Where("session_id = ?", sessionID).First(&draft).Error
	switch {
	case err == nil:
		apply(&draft)
		if err := db.Save(&draft).Error; err != nil {
			return nil, err
		}
		return &draft, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		apply(&draft)
		if err := db.Create(&draft).Error; err != nil {
			// Lost a create race for the same session: land as the later write.
			if IsDuplicateKey(err) {
				var existing Draft
				if ferr := db.Where("session_id = ?", sessionID).First(&existing).Error; ferr != nil {
					return nil, err
				}
				apply(&existing)
				if serr := db.Save(&existing).Error; serr != nil {
					return nil, serr
				}
				return &existing, nil
			}
			return nil, err
		}
		return &draft, nil
	default:
		return nil, err
	}
}

// FindDraftBySession returns the draft for a session, or (nil, nil) when none
// exists. Absence is a normal result, not a failure.
func FindDraftBySession(db *gorm.DB, sessionID string) (*Draft, error) {
	var draft Draft
	err := db.Where("session_id = ?", sessionID).First(&draft).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// DeleteDraftBySession removes the draft for a session. Deleting an absent
// draft is not an error.
func DeleteDraftBySession(db *gorm.DB, sessionID string) error {
	return db.Where("session_id = ?", sessionID).Delete(&Draft{}).Error
}

// SweepExpiredDrafts removes drafts whose last save is older than DraftTTL and
// returns how many were removed. Best-effort cleanup; correctness never
// depends on it.
func SweepExpiredDrafts(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("last_saved < ?", now.Add(-DraftTTL)).Delete(&Draft{})
	return res.RowsAffected, res.Error
}

// DraftStats aggregates the admin dashboard's draft counters.
type DraftStats struct {
	Total             int64   `json:"total"`
	Today             int64   `json:"today"`
	AverageCompletion float64 `json:"averageCompletion"`
}

// GetDraftStats counts drafts overall, drafts started today and the average
// completion percentage.
func GetDraftStats(db *gorm.DB) (DraftStats, error) {
	var stats DraftStats

	if err := db.Model(&Draft{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	todayStart := startOfDay(time.Now())
	if err := db.Model(&Draft{}).Where("created_at >= ?", todayStart).Count(&stats.Today).Error; err != nil {
		return stats, err
	}

	if stats.Total > 0 {
		var avg *float64
		if err := db.Model(&Draft{}).Select("AVG(completion_percentage)").Scan(&avg).Error; err != nil {
			return stats, err
		}
		if avg != nil {
			stats.AverageCompletion = *avg
		}
	}
	return stats, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsDuplicateKey reports whether err is a unique-constraint violation. Checked
// by string as well since the MySQL and sqlite drivers only translate to
// gorm.ErrDuplicatedKey when the dialector supports it.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
