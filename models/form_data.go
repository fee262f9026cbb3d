package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FormData is the open key/value bag a draft carries. The client sends whatever
// subset of the claim form it has so far; nothing here is validated until the
// payload is promoted to a Claim.
type FormData map[string]interface{}

func (f FormData) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FormData) Scan(value interface{}) error {
	if value == nil {
		*f = FormData{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("formdata: cannot scan %T", value)
	}
	if len(b) == 0 {
		*f = FormData{}
		return nil
	}
	return json.Unmarshal(b, f)
}

// legacyPaths maps a flat field name to its location in the old nested form
// layout. Older saved drafts used grouped objects (personalDetails, address,
// claimDetails, consent); new ones are flat. Field lookups check the flat key
// first and fall back to the nested path.
var legacyPaths = map[string][]string{
	"title":       {"personalDetails", "title"},
	"firstName":   {"personalDetails", "firstName"},
	"lastName":    {"personalDetails", "lastName"},
	"email":       {"personalDetails", "email"},
	"phone":       {"personalDetails", "phone"},
	"dob":         {"personalDetails", "dob"},
	"dateOfBirth": {"personalDetails", "dateOfBirth"},

	"addressLine1": {"address", "current", "addressLine1"},
	"addressLine2": {"address", "current", "addressLine2"},
	"city":         {"address", "current", "city"},
	"county":       {"address", "current", "county"},
	"postcode":     {"address", "current", "postcode"},

	"hadCarFinance":          {"claimDetails", "hadCarFinance"},
	"financeType":            {"claimDetails", "financeType"},
	"financePeriod":          {"claimDetails", "financePeriod"},
	"financePeriodStart":     {"claimDetails", "financePeriodStart"},
	"financePeriodEnd":       {"claimDetails", "financePeriodEnd"},
	"wasCommissionDisclosed": {"claimDetails", "wasCommissionDisclosed"},

	"termsAccepted":   {"consent", "termsAccepted"},
	"privacyAccepted": {"consent", "privacyAccepted"},
	"marketingOptIn":  {"consent", "marketingOptIn"},
	"signature":       {"consent", "signature"},
}

// hasValue mirrors the completion checklist's filled-predicate: present,
// non-nil, not an empty string and not false.
func hasValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	default:
		return true
	}
}

// Field returns the value for name, checking the flat layout first and the
// legacy nested layout second. Returns nil when the field is absent or empty.
func (f FormData) Field(name string) interface{} {
	if v, ok := f[name]; ok && hasValue(v) {
		return v
	}
	path, ok := legacyPaths[name]
	if !ok {
		return nil
	}
	var cur interface{} = map[string]interface{}(f)
	for _, seg := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	if !hasValue(cur) {
		return nil
	}
	return cur
}

// Has reports whether the field counts as filled under either layout.
func (f FormData) Has(name string) bool {
	return f.Field(name) != nil
}

// String returns the field as a string, or "" when absent or not a string.
func (f FormData) String(name string) string {
	if s, ok := f.Field(name).(string); ok {
		return s
	}
	return ""
}

// Bool returns the field as a bool, false when absent.
func (f FormData) Bool(name string) bool {
	if b, ok := f.Field(name).(bool); ok {
		return b
	}
	return false
}
