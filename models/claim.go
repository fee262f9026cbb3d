package models

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// Claim statuses. The progression new → reviewing → processing → submitted →
// approved/rejected → completed is advisory; admins may set any value.
const (
	StatusNew        = "new"
	StatusReviewing  = "reviewing"
	StatusProcessing = "processing"
	StatusSubmitted  = "submitted"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusCompleted  = "completed"
)

var validClaimStatuses = []string{
	"draft", StatusNew, StatusReviewing, StatusProcessing,
	StatusSubmitted, StatusApproved, StatusRejected, StatusCompleted,
}

// IsValidClaimStatus reports whether s is an accepted status value.
func IsValidClaimStatus(s string) bool {
	for _, v := range validClaimStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// AdminNote is one entry in a claim's append-only notes trail.
type AdminNote struct {
	Note      string    `json:"note"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminNotes stores the trail as a JSON column.
type AdminNotes []AdminNote

func (n AdminNotes) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (n *AdminNotes) Scan(value interface{}) error {
	return scanJSON(value, n)
}

// StringList stores a slice of strings as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func scanJSON(value, dest interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T as JSON", value)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dest)
}

// Claim is the authoritative submission record. Business fields are immutable
// after creation; only status and the notes trail change afterwards.
type Claim struct {
	ClaimID int `gorm:"primaryKey;column:claim_id" json:"id"`

	// Personal details
	Title       string `gorm:"column:title" json:"title"`
	FirstName   string `gorm:"column:first_name" json:"firstName"`
	LastName    string `gorm:"column:last_name" json:"lastName"`
	Email       string `gorm:"column:email;index" json:"email"`
	Phone       string `gorm:"column:phone" json:"phone"`
	DateOfBirth string `gorm:"column:date_of_birth" json:"dateOfBirth"`

	// Address
	AddressLine1       string `gorm:"column:address_line1" json:"addressLine1"`
	AddressLine2       string `gorm:"column:address_line2" json:"addressLine2"`
	City               string `gorm:"column:city" json:"city"`
	County             string `gorm:"column:county" json:"county"`
	Postcode           string `gorm:"column:postcode" json:"postcode"`
	HasPreviousAddress bool   `gorm:"column:has_previous_address" json:"hasPreviousAddress"`
	PrevAddressLine1   string `gorm:"column:prev_address_line1" json:"prevAddressLine1"`
	PrevAddressLine2   string `gorm:"column:prev_address_line2" json:"prevAddressLine2"`
	PrevCity           string `gorm:"column:prev_city" json:"prevCity"`
	PrevPostcode       string `gorm:"column:prev_postcode" json:"prevPostcode"`

	// Finance / claim details
	Lenders                   StringList `gorm:"column:lenders;type:json" json:"lenders"`
	VehicleMake               string     `gorm:"column:vehicle_make" json:"vehicleMake"`
	VehicleModel              string     `gorm:"column:vehicle_model" json:"vehicleModel"`
	VehicleYear               string     `gorm:"column:vehicle_year" json:"vehicleYear"`
	VehicleRegistrationNumber string     `gorm:"column:vehicle_registration_number" json:"vehicleRegistrationNumber"`
	EstimatedValue            string     `gorm:"column:estimated_value" json:"estimatedValue"`
	AdditionalInfo            string     `gorm:"column:additional_info;size:2000" json:"additionalInfo"`

	// Consent and legal
	NotBankrupt     bool       `gorm:"column:not_bankrupt" json:"notBankrupt"`
	TermsAccepted   bool       `gorm:"column:terms_accepted" json:"termsAccepted"`
	PrivacyAccepted bool       `gorm:"column:privacy_accepted" json:"privacyAccepted"`
	MarketingOptIn  bool       `gorm:"column:marketing_opt_in" json:"marketingOptIn"`
	Signature       string     `gorm:"column:signature;type:text" json:"signature,omitempty"`
	SignedAt        *time.Time `gorm:"column:signed_at" json:"signedAt,omitempty"`

	// Lifecycle
	Status               string `gorm:"column:status;default:new;index" json:"status"`
	IsDraft              bool   `gorm:"column:is_draft;index" json:"isDraft"`
	CompletionPercentage int    `gorm:"column:completion_percentage;default:0" json:"completionPercentage"`

	// SessionID back-references the draft/session that produced the claim.
	// The unique index is what makes duplicate submission safe: a race loser's
	// insert is rejected instead of creating a second claim. Nullable so
	// anonymous submissions (no prior draft) can coexist.
	SessionID *string `gorm:"column:session_id;uniqueIndex;size:128" json:"sessionId,omitempty"`

	// ReferenceNumber is the human-facing identifier, assigned once.
	ReferenceNumber string `gorm:"column:reference_number;uniqueIndex;size:32" json:"referenceNumber"`

	AdminNotes AdminNotes `gorm:"column:admin_notes;type:json" json:"adminNotes"`

	// Tracking & metadata
	Source    string `gorm:"column:source;default:website" json:"source"`
	IPAddress string `gorm:"column:ip_address" json:"ipAddress"`
	Location  string `gorm:"column:location" json:"location"`
	UserAgent string `gorm:"column:user_agent" json:"userAgent,omitempty"`
	Referrer  string `gorm:"column:referrer" json:"referrer"`

	// Out-of-band CRM integration state
	CRMSynced    bool       `gorm:"column:crm_synced" json:"crmSynced"`
	CRMLeadID    string     `gorm:"column:crm_lead_id" json:"crmLeadId,omitempty"`
	CRMSyncDate  *time.Time `gorm:"column:crm_sync_date" json:"crmSyncDate,omitempty"`
	CRMSyncError string     `gorm:"column:crm_sync_error" json:"crmSyncError,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Claim) TableName() string {
	return "claims"
}

// FullName joins title and names for display.
func (c *Claim) FullName() string {
	name := ""
	for _, part := range []string{c.Title, c.FirstName, c.LastName} {
		if part == "" {
			continue
		}
		if name != "" {
			name += " "
		}
		name += part
	}
	return name
}

// claimTrackedFields is the fixed checklist for a claim's completion
// percentage. Narrower than the draft checklist: finance details are optional
// on a finalized claim.
var claimTrackedFields = 9

func (c *Claim) countFilled() int {
	filled := 0
	for _, s := range []string{
		c.FirstName, c.LastName, c.Email, c.Phone, c.DateOfBirth,
		c.AddressLine1, c.City, c.Postcode,
	} {
		if s != "" {
			filled++
		}
	}
	if c.TermsAccepted {
		filled++
	}
	return filled
}

// BeforeSave recomputes the completion percentage on every write.
func (c *Claim) BeforeSave(tx *gorm.DB) error {
	c.CompletionPercentage = int(math.Round(float64(c.countFilled()) / float64(claimTrackedFields) * 100))
	return nil
}

// BeforeCreate assigns the reference number once. Never regenerated.
func (c *Claim) BeforeCreate(tx *gorm.DB) error {
	if c.ReferenceNumber == "" {
		c.ReferenceNumber = NewReferenceNumber()
	}
	if c.SignedAt == nil && c.Signature != "" {
		now := time.Now()
		c.SignedAt = &now
	}
	return nil
}

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewReferenceNumber builds a CLM-<millis>-<4 char> reference. The timestamp
// plus random suffix makes collisions negligible; the unique index on the
// column is the hard guarantee.
func NewReferenceNumber() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	suffix := make([]byte, 4)
	for i, v := range b {
		suffix[i] = base36Upper[int(v)%len(base36Upper)]
	}
	return fmt.Sprintf("CLM-%d-%s", time.Now().UnixMilli(), suffix)
}

// FindClaimBySession returns the claim created from a session, or (nil, nil)
// when none exists. Used only for duplicate-submission detection.
func FindClaimBySession(db *gorm.DB, sessionID string) (*Claim, error) {
	var claim Claim
	err := db.Where("session_id = ?", sessionID).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// ClaimStatusView is the public-safe projection for claimant self-service
// status lookups.
type ClaimStatusView struct {
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
	FirstName   string    `json:"firstName"`
}

// FindClaimByReference returns the restricted view for a reference number, or
// (nil, nil) when no claim matches.
func FindClaimByReference(db *gorm.DB, reference string) (*ClaimStatusView, error) {
	var claim Claim
	err := db.Select("reference_number", "status", "created_at", "first_name").
		Where("reference_number = ?", reference).First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ClaimStatusView{
		Reference:   claim.ReferenceNumber,
		Status:      claim.Status,
		SubmittedAt: claim.CreatedAt,
		FirstName:   claim.FirstName,
	}, nil
}

// AppendAdminNote adds to the notes trail without touching business fields.
func (c *Claim) AppendAdminNote(note, createdBy string) {
	c.AdminNotes = append(c.AdminNotes, AdminNote{
		Note:      note,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	})
}

// ClaimMetrics aggregates counts over non-draft claims for the admin
// dashboard.
type ClaimMetrics struct {
	Total             int64   `json:"total"`
	New               int64   `json:"new"`
	Processing        int64   `json:"processing"`
	Approved          int64   `json:"approved"`
	Completed         int64   `json:"completed"`
	RecentSubmissions int64   `json:"recentSubmissions"`
	ConversionRate    float64 `json:"conversionRate"`
}

// GetClaimMetrics computes the dashboard counters. Conversion rate is
// completed/total as a percentage to one decimal, zero when there are no
// claims.
func GetClaimMetrics(db *gorm.DB) (ClaimMetrics, error) {
	var m ClaimMetrics

	base := func() *gorm.DB { return db.Model(&Claim{}).Where("is_draft = ?", false) }

	if err := base().Count(&m.Total).Error; err != nil {
		return m, err
	}
	counts := []struct {
		status string
		dest   *int64
	}{
		{StatusNew, &m.New},
		{StatusProcessing, &m.Processing},
		{StatusApproved, &m.Approved},
		{StatusCompleted, &m.Completed},
	}
	for _, c := range counts {
		if err := base().Where("status = ?", c.status).Count(c.dest).Error; err != nil {
			return m, err
		}
	}

	todayStart := startOfDay(time.Now())
	if err := base().Where("created_at >= ?", todayStart).Count(&m.RecentSubmissions).Error; err != nil {
		return m, err
	}

	if m.Total > 0 {
		m.ConversionRate = math.Round(float64(m.Completed)/float64(m.Total)*1000) / 10
	}
	return m, nil
}
