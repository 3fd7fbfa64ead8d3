// Package instruction contains the pure business logic for client instructions.
// This is part of the Functional Core - no I/O, only pure functions.
package instruction

import (
	"fmt"
	"sort"
	"strconv"
)

// Field identifies a persisted instruction attribute by its wire (JSON) key.
// Only fields declared in the allow-list below can ever reach storage.
type Field string

// Identity fields.
const (
	FieldTitle                Field = "title"
	FieldFirstName            Field = "firstName"
	FieldLastName             Field = "lastName"
	FieldNationality          Field = "nationality"
	FieldNationalityAlpha2    Field = "nationalityAlpha2"
	FieldDOB                  Field = "dob"
	FieldGender               Field = "gender"
	FieldPhone                Field = "phone"
	FieldEmail                Field = "email"
	FieldPassportNumber       Field = "passportNumber"
	FieldDriversLicenseNumber Field = "driversLicenseNumber"
	FieldIDType               Field = "idType"
)

// Address fields.
const (
	FieldHouseNumber Field = "houseNumber"
	FieldStreet      Field = "street"
	FieldCity        Field = "city"
	FieldCounty      Field = "county"
	FieldPostcode    Field = "postcode"
	FieldCountry     Field = "country"
	FieldCountryCode Field = "countryCode"
)

// Company fields.
const (
	FieldCompanyName        Field = "companyName"
	FieldCompanyNumber      Field = "companyNumber"
	FieldCompanyHouseNumber Field = "companyHouseNumber"
	FieldCompanyStreet      Field = "companyStreet"
	FieldCompanyCity        Field = "companyCity"
	FieldCompanyCounty      Field = "companyCounty"
	FieldCompanyPostcode    Field = "companyPostcode"
	FieldCompanyCountry     Field = "companyCountry"
	FieldCompanyCountryCode Field = "companyCountryCode"
)

// Business and workflow fields.
const (
	FieldClientType     Field = "clientType"
	FieldAreaOfWork     Field = "areaOfWork"
	FieldWorkType       Field = "workType"
	FieldSolicitorID    Field = "solicitorId"
	FieldNotes          Field = "notes"
	FieldConsentGiven   Field = "consentGiven"
	FieldStage          Field = "stage"
	FieldInternalStatus Field = "internalStatus"
)

// Payment hint fields. These are stripped from read responses.
const (
	FieldPaymentMethod    Field = "paymentMethod"
	FieldPaymentResult    Field = "paymentResult"
	FieldPaymentAmount    Field = "paymentAmount"
	FieldPaymentProduct   Field = "paymentProduct"
	FieldPaymentTimestamp Field = "paymentTimestamp"
)

// Server-managed snapshot fields. Clients cannot write these.
const (
	FieldPaymentDisabled Field = "paymentDisabled"
	FieldPoidDate        Field = "poidDate"
)

type fieldGroup int

const (
	groupClient fieldGroup = iota
	groupPayment
	groupServer
)

type fieldSpec struct {
	column string
	group  fieldGroup
	isBool bool
}

var fieldSpecs = map[Field]fieldSpec{
	FieldTitle:                {column: "title"},
	FieldFirstName:            {column: "first_name"},
	FieldLastName:             {column: "last_name"},
	FieldNationality:          {column: "nationality"},
	FieldNationalityAlpha2:    {column: "nationality_alpha2"},
	FieldDOB:                  {column: "dob"},
	FieldGender:               {column: "gender"},
	FieldPhone:                {column: "phone"},
	FieldEmail:                {column: "email"},
	FieldPassportNumber:       {column: "passport_number"},
	FieldDriversLicenseNumber: {column: "drivers_license_number"},
	FieldIDType:               {column: "id_type"},

	FieldHouseNumber: {column: "house_number"},
	FieldStreet:      {column: "street"},
	FieldCity:        {column: "city"},
	FieldCounty:      {column: "county"},
	FieldPostcode:    {column: "postcode"},
	FieldCountry:     {column: "country"},
	FieldCountryCode: {column: "country_code"},

	FieldCompanyName:        {column: "company_name"},
	FieldCompanyNumber:      {column: "company_number"},
	FieldCompanyHouseNumber: {column: "company_house_number"},
	FieldCompanyStreet:      {column: "company_street"},
	FieldCompanyCity:        {column: "company_city"},
	FieldCompanyCounty:      {column: "company_county"},
	FieldCompanyPostcode:    {column: "company_postcode"},
	FieldCompanyCountry:     {column: "company_country"},
	FieldCompanyCountryCode: {column: "company_country_code"},

	FieldClientType:     {column: "client_type"},
	FieldAreaOfWork:     {column: "area_of_work"},
	FieldWorkType:       {column: "work_type"},
	FieldSolicitorID:    {column: "solicitor_id"},
	FieldNotes:          {column: "notes"},
	FieldConsentGiven:   {column: "consent_given"},
	FieldStage:          {column: "stage"},
	FieldInternalStatus: {column: "internal_status"},

	FieldPaymentMethod:    {column: "payment_method", group: groupPayment},
	FieldPaymentResult:    {column: "payment_result", group: groupPayment},
	FieldPaymentAmount:    {column: "payment_amount", group: groupPayment},
	FieldPaymentProduct:   {column: "payment_product", group: groupPayment},
	FieldPaymentTimestamp: {column: "payment_timestamp", group: groupPayment},

	FieldPaymentDisabled: {column: "payment_disabled", group: groupServer, isBool: true},
	FieldPoidDate:        {column: "poid_date", group: groupServer},
}

// LookupField resolves a wire key to an allow-listed Field.
func LookupField(key string) (Field, bool) {
	f := Field(key)
	_, ok := fieldSpecs[f]
	return f, ok
}

// Fields returns every allow-listed field in a stable order.
func Fields() []Field {
	out := make([]Field, 0, len(fieldSpecs))
	for f := range fieldSpecs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Column returns the storage column backing the field.
func (f Field) Column() string {
	return fieldSpecs[f].column
}

// IsPayment reports whether the field is a payment hint.
func (f Field) IsPayment() bool {
	return fieldSpecs[f].group == groupPayment
}

// IsBool reports whether the field is stored as a boolean.
func (f Field) IsBool() bool {
	return fieldSpecs[f].isBool
}

// ClientWritable reports whether a client submission may set the field.
// Stage is excluded because it travels as a separate hint.
func (f Field) ClientWritable() bool {
	spec, ok := fieldSpecs[f]
	if !ok {
		return false
	}
	return spec.group != groupServer && f != FieldStage
}

// Patch is a partial update keyed by allow-listed fields.
// Boolean fields carry "true" or "false".
type Patch map[Field]string

// SplitIncoming separates a raw submission into writable string fields and
// warnings for everything that cannot be written. The instructionRef and
// stage keys are expected to have been removed by the caller.
func SplitIncoming(raw map[string]any) (map[string]string, []string) {
	fields := make(map[string]string, len(raw))
	var warnings []string

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		f, ok := LookupField(key)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown field %q ignored", key))
			continue
		}
		if !f.ClientWritable() {
			warnings = append(warnings, fmt.Sprintf("field %q is server-managed and was ignored", key))
			continue
		}
		value, ok := scalarString(raw[key])
		if !ok {
			warnings = append(warnings, fmt.Sprintf("field %q has a non-scalar value and was ignored", key))
			continue
		}
		fields[key] = value
	}

	return fields, warnings
}

func scalarString(v any) (string, bool) {
	switch typed := v.(type) {
	case nil:
		return "", true
	case string:
		return typed, true
	case bool:
		return strconv.FormatBool(typed), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}
