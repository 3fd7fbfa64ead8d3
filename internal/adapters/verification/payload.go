package verification

import (
	"strings"
	"time"

	"github.com/example/intake/internal/core/instruction"
)

// Fallbacks for profile data the client did not provide.
const (
	notProvided        = "Not provided"
	defaultCountry     = "United Kingdom"
	defaultCountryCode = "GB"
	defaultTitle       = "Mx"
	defaultGender      = "Unknown"
)

var defaultCheckTypes = []string{"address", "identity", "peps_sanctions"}

type checkRequest struct {
	ExternalReferenceID string   `json:"externalReferenceId"`
	RunAsync            bool     `json:"runAsync"`
	CheckTypes          []string `json:"checkTypes"`
	Profile             profile  `json:"profile"`
}

type profile struct {
	Title          string    `json:"title"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	DateOfBirth    string    `json:"dateOfBirth,omitempty"`
	Gender         string    `json:"gender"`
	Email          string    `json:"email,omitempty"`
	MobileNumber   string    `json:"mobileNumber,omitempty"`
	Nationality    string    `json:"nationality,omitempty"`
	CurrentAddress address   `json:"currentAddress"`
	IDDocument     *document `json:"idDocument,omitempty"`
}

type address struct {
	BuildingNumber string `json:"buildingNumber"`
	Street         string `json:"street"`
	Town           string `json:"town"`
	County         string `json:"county"`
	Postcode       string `json:"postcode"`
	Country        string `json:"country"`
	CountryCode    string `json:"countryCode"`
}

type document struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// buildRequest maps an instruction onto the provider's check request.
func buildRequest(inst *instruction.Instruction) checkRequest {
	return checkRequest{
		ExternalReferenceID: inst.Ref,
		CheckTypes:          defaultCheckTypes,
		Profile: profile{
			Title:        or(inst.Title, defaultTitle),
			FirstName:    inst.FirstName,
			LastName:     inst.LastName,
			DateOfBirth:  isoDate(inst.DOB),
			Gender:       or(inst.Gender, defaultGender),
			Email:        inst.Email,
			MobileNumber: inst.Phone,
			Nationality:  inst.NationalityAlpha2,
			CurrentAddress: address{
				BuildingNumber: or(inst.HouseNumber, notProvided),
				Street:         or(inst.Street, notProvided),
				Town:           or(inst.City, notProvided),
				County:         or(inst.County, notProvided),
				Postcode:       or(inst.Postcode, notProvided),
				Country:        or(inst.Country, defaultCountry),
				CountryCode:    or(inst.CountryCode, defaultCountryCode),
			},
			IDDocument: idDocument(inst),
		},
	}
}

func idDocument(inst *instruction.Instruction) *document {
	kind := strings.ToLower(inst.IDType)
	switch {
	case strings.Contains(kind, "passport") && inst.PassportNumber != "":
		return &document{Type: "passport", Number: inst.PassportNumber}
	case strings.Contains(kind, "licen") && inst.DriversLicenseNumber != "":
		return &document{Type: "driving_licence", Number: inst.DriversLicenseNumber}
	case inst.PassportNumber != "":
		return &document{Type: "passport", Number: inst.PassportNumber}
	case inst.DriversLicenseNumber != "":
		return &document{Type: "driving_licence", Number: inst.DriversLicenseNumber}
	}
	return nil
}

// isoDate accepts dd/mm/yyyy or ISO dates; anything else passes through.
func isoDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t.Format(time.DateOnly)
	}
	if len(s) >= 10 {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
