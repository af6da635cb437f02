// Package phone validates and canonicalizes user-entered phone numbers.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers entered without a country code.
const DefaultRegion = "IN"

// Validator checks numbers against a default region.
type Validator struct {
	region string
}

// NewValidator builds a Validator; an empty region falls back to DefaultRegion.
func NewValidator(region string) *Validator {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &Validator{region: region}
}

// IsValid reports whether input is a dialable number for its region.
func (v *Validator) IsValid(input string) bool {
	num, err := v.parse(input)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// ToCanonical formats input as E.164. Unparseable input is returned trimmed.
func (v *Validator) ToCanonical(input string) string {
	num, err := v.parse(input)
	if err != nil {
		return strings.TrimSpace(input)
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func (v *Validator) parse(input string) (*phonenumbers.PhoneNumber, error) {
	return phonenumbers.Parse(strings.TrimSpace(input), v.region)
}
