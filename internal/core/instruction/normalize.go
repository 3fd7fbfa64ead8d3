package instruction

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaseFields = map[Field]bool{
	FieldTitle:          true,
	FieldFirstName:      true,
	FieldLastName:       true,
	FieldNationality:    true,
	FieldStreet:         true,
	FieldCity:           true,
	FieldCounty:         true,
	FieldCountry:        true,
	FieldCompanyStreet:  true,
	FieldCompanyCity:    true,
	FieldCompanyCounty:  true,
	FieldCompanyCountry: true,
}

var upperCaseFields = map[Field]bool{
	FieldPostcode:           true,
	FieldCompanyPostcode:    true,
	FieldNationalityAlpha2:  true,
	FieldCountryCode:        true,
	FieldCompanyCountryCode: true,
}

// Normalize maps raw submitted fields to canonical casing.
// Name and address fields are title-cased, email is lower-cased and codes
// are upper-cased. Unknown keys and empty values pass through unchanged.
// The input map is never modified.
func Normalize(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	// cases.Caser is stateful; one per call keeps Normalize safe for concurrent use.
	title := cases.Title(language.English)

	for key, value := range fields {
		if value == "" {
			out[key] = value
			continue
		}
		f := Field(key)
		switch {
		case titleCaseFields[f]:
			out[key] = title.String(strings.TrimSpace(value))
		case upperCaseFields[f]:
			out[key] = strings.ToUpper(strings.TrimSpace(value))
		case f == FieldEmail:
			out[key] = strings.ToLower(strings.TrimSpace(value))
		default:
			out[key] = value
		}
	}

	return out
}
