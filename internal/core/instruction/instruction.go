package instruction

// Stage is the client-facing progress marker of an instruction.
type Stage string

const (
	StageInProgress Stage = "in_progress"
	StageCompleted  Stage = "completed"
	StageRevisit    Stage = "re-visit"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageInProgress, StageCompleted, StageRevisit:
		return true
	}
	return false
}

// Status is the internal business-process marker.
type Status string

const (
	StatusPitch Status = "pitch"
	StatusPoid  Status = "poid"
	StatusPaid  Status = "paid"
)

// Payment result values written by the reconciler and the payment flow.
const (
	PaymentMethodBank      = "bank"
	PaymentResultVerifying = "verifying"
	PaymentResultSuccess   = "successful"
	PaymentResultFailed    = "failed"
)

// Instruction is the central intake record keyed by Ref.
type Instruction struct {
	Ref            string `json:"instructionRef"`
	Stage          Stage  `json:"stage"`
	InternalStatus Status `json:"internalStatus"`

	Title                string `json:"title,omitempty"`
	FirstName            string `json:"firstName,omitempty"`
	LastName             string `json:"lastName,omitempty"`
	Nationality          string `json:"nationality,omitempty"`
	NationalityAlpha2    string `json:"nationalityAlpha2,omitempty"`
	DOB                  string `json:"dob,omitempty"`
	Gender               string `json:"gender,omitempty"`
	Phone                string `json:"phone,omitempty"`
	Email                string `json:"email,omitempty"`
	PassportNumber       string `json:"passportNumber,omitempty"`
	DriversLicenseNumber string `json:"driversLicenseNumber,omitempty"`
	IDType               string `json:"idType,omitempty"`

	HouseNumber string `json:"houseNumber,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	County      string `json:"county,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`

	CompanyName        string `json:"companyName,omitempty"`
	CompanyNumber      string `json:"companyNumber,omitempty"`
	CompanyHouseNumber string `json:"companyHouseNumber,omitempty"`
	CompanyStreet      string `json:"companyStreet,omitempty"`
	CompanyCity        string `json:"companyCity,omitempty"`
	CompanyCounty      string `json:"companyCounty,omitempty"`
	CompanyPostcode    string `json:"companyPostcode,omitempty"`
	CompanyCountry     string `json:"companyCountry,omitempty"`
	CompanyCountryCode string `json:"companyCountryCode,omitempty"`

	ClientType   string `json:"clientType,omitempty"`
	AreaOfWork   string `json:"areaOfWork,omitempty"`
	WorkType     string `json:"workType,omitempty"`
	SolicitorID  string `json:"solicitorId,omitempty"`
	Notes        string `json:"notes,omitempty"`
	ConsentGiven string `json:"consentGiven,omitempty"`

	PaymentMethod    string `json:"paymentMethod,omitempty"`
	PaymentResult    string `json:"paymentResult,omitempty"`
	PaymentAmount    string `json:"paymentAmount,omitempty"`
	PaymentProduct   string `json:"paymentProduct,omitempty"`
	PaymentTimestamp string `json:"paymentTimestamp,omitempty"`

	PaymentDisabled bool   `json:"paymentDisabled"`
	PoidDate        string `json:"poidDate,omitempty"`

	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

var stringAccessors = map[Field]func(*Instruction) *string{
	FieldTitle:                func(i *Instruction) *string { return &i.Title },
	FieldFirstName:            func(i *Instruction) *string { return &i.FirstName },
	FieldLastName:             func(i *Instruction) *string { return &i.LastName },
	FieldNationality:          func(i *Instruction) *string { return &i.Nationality },
	FieldNationalityAlpha2:    func(i *Instruction) *string { return &i.NationalityAlpha2 },
	FieldDOB:                  func(i *Instruction) *string { return &i.DOB },
	FieldGender:               func(i *Instruction) *string { return &i.Gender },
	FieldPhone:                func(i *Instruction) *string { return &i.Phone },
	FieldEmail:                func(i *Instruction) *string { return &i.Email },
	FieldPassportNumber:       func(i *Instruction) *string { return &i.PassportNumber },
	FieldDriversLicenseNumber: func(i *Instruction) *string { return &i.DriversLicenseNumber },
	FieldIDType:               func(i *Instruction) *string { return &i.IDType },

	FieldHouseNumber: func(i *Instruction) *string { return &i.HouseNumber },
	FieldStreet:      func(i *Instruction) *string { return &i.Street },
	FieldCity:        func(i *Instruction) *string { return &i.City },
	FieldCounty:      func(i *Instruction) *string { return &i.County },
	FieldPostcode:    func(i *Instruction) *string { return &i.Postcode },
	FieldCountry:     func(i *Instruction) *string { return &i.Country },
	FieldCountryCode: func(i *Instruction) *string { return &i.CountryCode },

	FieldCompanyName:        func(i *Instruction) *string { return &i.CompanyName },
	FieldCompanyNumber:      func(i *Instruction) *string { return &i.CompanyNumber },
	FieldCompanyHouseNumber: func(i *Instruction) *string { return &i.CompanyHouseNumber },
	FieldCompanyStreet:      func(i *Instruction) *string { return &i.CompanyStreet },
	FieldCompanyCity:        func(i *Instruction) *string { return &i.CompanyCity },
	FieldCompanyCounty:      func(i *Instruction) *string { return &i.CompanyCounty },
	FieldCompanyPostcode:    func(i *Instruction) *string { return &i.CompanyPostcode },
	FieldCompanyCountry:     func(i *Instruction) *string { return &i.CompanyCountry },
	FieldCompanyCountryCode: func(i *Instruction) *string { return &i.CompanyCountryCode },

	FieldClientType:     func(i *Instruction) *string { return &i.ClientType },
	FieldAreaOfWork:     func(i *Instruction) *string { return &i.AreaOfWork },
	FieldWorkType:       func(i *Instruction) *string { return &i.WorkType },
	FieldSolicitorID:    func(i *Instruction) *string { return &i.SolicitorID },
	FieldNotes:          func(i *Instruction) *string { return &i.Notes },
	FieldConsentGiven:   func(i *Instruction) *string { return &i.ConsentGiven },
	FieldStage:          func(i *Instruction) *string { return (*string)(&i.Stage) },
	FieldInternalStatus: func(i *Instruction) *string { return (*string)(&i.InternalStatus) },

	FieldPaymentMethod:    func(i *Instruction) *string { return &i.PaymentMethod },
	FieldPaymentResult:    func(i *Instruction) *string { return &i.PaymentResult },
	FieldPaymentAmount:    func(i *Instruction) *string { return &i.PaymentAmount },
	FieldPaymentProduct:   func(i *Instruction) *string { return &i.PaymentProduct },
	FieldPaymentTimestamp: func(i *Instruction) *string { return &i.PaymentTimestamp },

	FieldPoidDate: func(i *Instruction) *string { return &i.PoidDate },
}

// Get returns the string form of a field value.
func (i *Instruction) Get(f Field) string {
	if f == FieldPaymentDisabled {
		if i.PaymentDisabled {
			return "true"
		}
		return "false"
	}
	if acc, ok := stringAccessors[f]; ok {
		return *acc(i)
	}
	return ""
}

// Set assigns a field from its string form. Unknown fields are ignored.
func (i *Instruction) Set(f Field, value string) {
	if f == FieldPaymentDisabled {
		i.PaymentDisabled = value == "true" || value == "1"
		return
	}
	if acc, ok := stringAccessors[f]; ok {
		*acc(i) = value
	}
}

// Apply writes every patch entry onto the instruction.
func (i *Instruction) Apply(p Patch) {
	for f, v := range p {
		i.Set(f, v)
	}
}

// Clone returns a copy of the instruction.
func (i *Instruction) Clone() *Instruction {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// WithoutPayment returns a copy with payment hint fields cleared, for read
// responses that must not expose payment data.
func (i *Instruction) WithoutPayment() *Instruction {
	c := i.Clone()
	if c == nil {
		return nil
	}
	for f := range stringAccessors {
		if f.IsPayment() {
			c.Set(f, "")
		}
	}
	return c
}
