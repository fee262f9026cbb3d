// utils/validator.go - Input validation
package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"claims-api/models"
)

// FieldError is one entry in the per-field error list a rejected submission
// gets back.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRegex     = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	postcodeRegex = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}$`)
	nonDigitRegex = regexp.MustCompile(`\D`)
)

var validTitles = []string{"Mr", "Mrs", "Miss", "Ms", "Dr", "Other"}

// Common disposable email domains rejected at submission.
var disposableDomains = []string{
	"tempmail.com", "throwaway.com", "mailinator.com",
	"guerrillamail.com", "10minutemail.com", "temp-mail.org",
}

// ValidateEmail checks basic email shape.
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(strings.ToLower(strings.TrimSpace(email)))
}

// HasValidEmailDomain rejects known disposable domains.
func HasValidEmailDomain(email string) bool {
	if !ValidateEmail(email) {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(email[strings.LastIndex(email, "@")+1:]))
	for _, d := range disposableDomains {
		if domain == d {
			return false
		}
	}
	return true
}

// SanitizeInput removes leading/trailing spaces and null bytes.
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}

func validateName(field, label, value string, errs *[]FieldError) {
	value = strings.TrimSpace(value)
	if value == "" {
		*errs = append(*errs, FieldError{field, label + " is required"})
		return
	}
	if len(value) < 2 || len(value) > 50 {
		*errs = append(*errs, FieldError{field, label + " must be between 2 and 50 characters"})
		return
	}
	if !nameRegex.MatchString(value) {
		*errs = append(*errs, FieldError{field, label + " must contain only letters, spaces, hyphens, and apostrophes"})
	}
}

func parseDateOfBirth(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date")
}

// ValidateClaim checks every required claim field and returns the full list of
// problems. An empty result means the payload may be persisted.
func ValidateClaim(claim *models.Claim) []FieldError {
	var errs []FieldError

	if claim.Title != "" {
		valid := false
		for _, t := range validTitles {
			if claim.Title == t {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, FieldError{"title", "Please select a valid title"})
		}
	}

	validateName("firstName", "First name", claim.FirstName, &errs)
	validateName("lastName", "Last name", claim.LastName, &errs)

	email := strings.TrimSpace(claim.Email)
	switch {
	case email == "":
		errs = append(errs, FieldError{"email", "Email address is required"})
	case !ValidateEmail(email):
		errs = append(errs, FieldError{"email", "Please enter a valid email address"})
	case !HasValidEmailDomain(email):
		errs = append(errs, FieldError{"email", "Please use a permanent email address"})
	}

	phone := strings.TrimSpace(claim.Phone)
	if phone == "" {
		errs = append(errs, FieldError{"phone", "Phone number is required"})
	} else {
		digits := nonDigitRegex.ReplaceAllString(phone, "")
		if len(digits) < 10 {
			errs = append(errs, FieldError{"phone", "Phone number must be at least 10 digits"})
		} else if len(digits) > 11 {
			errs = append(errs, FieldError{"phone", "Phone number must not exceed 11 digits"})
		}
	}

	if claim.DateOfBirth == "" {
		errs = append(errs, FieldError{"dateOfBirth", "Date of birth is required"})
	} else if dob, err := parseDateOfBirth(claim.DateOfBirth); err != nil {
		errs = append(errs, FieldError{"dateOfBirth", "Please enter a valid date"})
	} else {
		age := int(time.Since(dob).Hours() / 24 / 365.25)
		if age < 18 {
			errs = append(errs, FieldError{"dateOfBirth", "You must be at least 18 years old"})
		} else if age > 120 {
			errs = append(errs, FieldError{"dateOfBirth", "Please enter a valid date of birth"})
		}
	}

	if strings.TrimSpace(claim.AddressLine1) == "" {
		errs = append(errs, FieldError{"addressLine1", "Address line 1 is required"})
	} else if len(claim.AddressLine1) > 100 {
		errs = append(errs, FieldError{"addressLine1", "Address line 1 must be less than 100 characters"})
	}
	if len(claim.AddressLine2) > 100 {
		errs = append(errs, FieldError{"addressLine2", "Address line 2 must be less than 100 characters"})
	}

	if strings.TrimSpace(claim.City) == "" {
		errs = append(errs, FieldError{"city", "City is required"})
	} else if len(claim.City) > 50 {
		errs = append(errs, FieldError{"city", "City must be less than 50 characters"})
	}
	if len(claim.County) > 50 {
		errs = append(errs, FieldError{"county", "County must be less than 50 characters"})
	}

	if strings.TrimSpace(claim.Postcode) == "" {
		errs = append(errs, FieldError{"postcode", "Postcode is required"})
	} else if !postcodeRegex.MatchString(strings.TrimSpace(claim.Postcode)) {
		errs = append(errs, FieldError{"postcode", "Please enter a valid UK postcode"})
	}

	if len(claim.AdditionalInfo) > 2000 {
		errs = append(errs, FieldError{"additionalInfo", "Additional information must be less than 2000 characters"})
	}

	if !claim.NotBankrupt {
		errs = append(errs, FieldError{"notBankrupt", "You must confirm you are not bankrupt"})
	}
	if claim.Signature == "" {
		errs = append(errs, FieldError{"signature", "Signature is required"})
	}
	if !claim.TermsAccepted {
		errs = append(errs, FieldError{"termsAccepted", "You must accept the terms and conditions"})
	}
	if !claim.PrivacyAccepted {
		errs = append(errs, FieldError{"privacyAccepted", "You must accept the privacy policy"})
	}

	return errs
}
