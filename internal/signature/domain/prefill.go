package domain

import (
	"encoding/json"
	"sort"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/recoverydesk/esign/internal/errors"
	customValidation "github.com/recoverydesk/esign/internal/validation"
)

// Section groups form fields in the rendered document.
type Section string

const (
	SectionParty    Section = "party"
	SectionVehicle  Section = "vehicle"
	SectionAccident Section = "accident"
	SectionOther    Section = "other"
)

// SectionOrder is the fixed order sections appear in a generated document.
var SectionOrder = []Section{SectionParty, SectionVehicle, SectionAccident, SectionOther}

// Title is the heading printed above a section.
func (s Section) Title() string {
	switch s {
	case SectionParty:
		return "Party Details"
	case SectionVehicle:
		return "Vehicle Details"
	case SectionAccident:
		return "Accident Details"
	default:
		return "Other Details"
	}
}

// Field is one labelled value of a form.
type Field struct {
	Key      string
	Label    string
	Section  Section
	Value    string
	Required bool
}

// Prefill is the immutable snapshot of case data captured when a token is issued.
// Each document type has its own variant.
type Prefill interface {
	DocumentType() DocumentType
	// Fields returns every field of the variant in display order, including empty ones.
	Fields() []Field
	bindings() []binding
}

type binding struct {
	key      string
	label    string
	section  Section
	value    *string
	required bool
	rules    []validation.Rule
}

// PartyDetails identifies the signing party.
type PartyDetails struct {
	FullName string
	Email    string
	Phone    string
	Address  string
	Postcode string
}

func (p *PartyDetails) bindings() []binding {
	return []binding{
		{key: "client_name", label: "Full name", section: SectionParty, value: &p.FullName, required: true},
		{key: "client_email", label: "Email", section: SectionParty, value: &p.Email, rules: []validation.Rule{customValidation.Email}},
		{key: "client_phone", label: "Phone", section: SectionParty, value: &p.Phone, rules: []validation.Rule{customValidation.Phone}},
		{key: "client_address", label: "Address", section: SectionParty, value: &p.Address},
		{key: "client_postcode", label: "Postcode", section: SectionParty, value: &p.Postcode},
	}
}

// VehicleDetails describes the client's vehicle.
type VehicleDetails struct {
	Registration string
	Make         string
	Model        string
}

func (v *VehicleDetails) bindings(required bool) []binding {
	return []binding{
		{key: "vehicle_registration", label: "Registration", section: SectionVehicle, value: &v.Registration, required: required},
		{key: "vehicle_make", label: "Make", section: SectionVehicle, value: &v.Make},
		{key: "vehicle_model", label: "Model", section: SectionVehicle, value: &v.Model},
	}
}

// AccidentDetails describes the incident behind the case.
type AccidentDetails struct {
	Date        string
	Time        string
	Location    string
	Description string
}

func (a *AccidentDetails) bindings(required bool) []binding {
	return []binding{
		{key: "accident_date", label: "Date of accident", section: SectionAccident, value: &a.Date, required: required},
		{key: "accident_time", label: "Time of accident", section: SectionAccident, value: &a.Time},
		{key: "accident_location", label: "Location", section: SectionAccident, value: &a.Location},
		{key: "accident_description", label: "Circumstances", section: SectionAccident, value: &a.Description},
	}
}

// ClaimsPrefill prefills the claims form.
type ClaimsPrefill struct {
	Party                  PartyDetails
	Vehicle                VehicleDetails
	Accident               AccidentDetails
	ThirdPartyRegistration string
	ThirdPartyInsurer      string
	ClaimReference         string
}

func (p *ClaimsPrefill) DocumentType() DocumentType { return DocumentTypeClaims }
func (p *ClaimsPrefill) Fields() []Field            { return fieldsOf(p) }

func (p *ClaimsPrefill) bindings() []binding {
	b := p.Party.bindings()
	b = append(b, p.Vehicle.bindings(true)...)
	b = append(b, p.Accident.bindings(true)...)
	return append(b,
		binding{key: "third_party_registration", label: "Third party registration", section: SectionAccident, value: &p.ThirdPartyRegistration},
		binding{key: "third_party_insurer", label: "Third party insurer", section: SectionAccident, value: &p.ThirdPartyInsurer},
		binding{key: "claim_reference", label: "Claim reference", section: SectionOther, value: &p.ClaimReference},
	)
}

// AuthorityToActPrefill prefills the authority to act form.
type AuthorityToActPrefill struct {
	Party          PartyDetails
	Vehicle        VehicleDetails
	Accident       AccidentDetails
	ClaimReference string
}

func (p *AuthorityToActPrefill) DocumentType() DocumentType { return DocumentTypeAuthorityToAct }
func (p *AuthorityToActPrefill) Fields() []Field            { return fieldsOf(p) }

func (p *AuthorityToActPrefill) bindings() []binding {
	b := p.Party.bindings()
	b = append(b, p.Vehicle.bindings(true)...)
	b = append(b, p.Accident.bindings(false)...)
	return append(b,
		binding{key: "claim_reference", label: "Claim reference", section: SectionOther, value: &p.ClaimReference},
	)
}

// NotAtFaultRentalPrefill prefills the not-at-fault hire agreement.
type NotAtFaultRentalPrefill struct {
	Party                   PartyDetails
	Vehicle                 VehicleDetails
	Accident                AccidentDetails
	HireVehicleRegistration string
	HireStartDate           string
}

func (p *NotAtFaultRentalPrefill) DocumentType() DocumentType { return DocumentTypeNotAtFaultRental }
func (p *NotAtFaultRentalPrefill) Fields() []Field            { return fieldsOf(p) }

func (p *NotAtFaultRentalPrefill) bindings() []binding {
	b := p.Party.bindings()
	b = append(b, p.Vehicle.bindings(true)...)
	b = append(b, p.Accident.bindings(true)...)
	return append(b,
		binding{key: "hire_vehicle_registration", label: "Hire vehicle registration", section: SectionOther, value: &p.HireVehicleRegistration},
		binding{key: "hire_start_date", label: "Hire start date", section: SectionOther, value: &p.HireStartDate},
	)
}

// CertisRentalPrefill prefills the Certis hire agreement.
type CertisRentalPrefill struct {
	Party                   PartyDetails
	Vehicle                 VehicleDetails
	Accident                AccidentDetails
	HireVehicleRegistration string
	HireStartDate           string
	CertisReference         string
}

func (p *CertisRentalPrefill) DocumentType() DocumentType { return DocumentTypeCertisRental }
func (p *CertisRentalPrefill) Fields() []Field            { return fieldsOf(p) }

func (p *CertisRentalPrefill) bindings() []binding {
	b := p.Party.bindings()
	b = append(b, p.Vehicle.bindings(true)...)
	b = append(b, p.Accident.bindings(true)...)
	return append(b,
		binding{key: "hire_vehicle_registration", label: "Hire vehicle registration", section: SectionOther, value: &p.HireVehicleRegistration},
		binding{key: "hire_start_date", label: "Hire start date", section: SectionOther, value: &p.HireStartDate},
		binding{key: "certis_reference", label: "Certis reference", section: SectionOther, value: &p.CertisReference, required: true},
	)
}

// DirectionToPayPrefill prefills the direction to pay form.
type DirectionToPayPrefill struct {
	Party          PartyDetails
	Vehicle        VehicleDetails
	PayeeName      string
	ClaimReference string
}

func (p *DirectionToPayPrefill) DocumentType() DocumentType { return DocumentTypeDirectionToPay }
func (p *DirectionToPayPrefill) Fields() []Field            { return fieldsOf(p) }

func (p *DirectionToPayPrefill) bindings() []binding {
	b := p.Party.bindings()
	b = append(b, p.Vehicle.bindings(false)...)
	return append(b,
		binding{key: "payee_name", label: "Payee", section: SectionOther, value: &p.PayeeName, required: true},
		binding{key: "claim_reference", label: "Claim reference", section: SectionOther, value: &p.ClaimReference},
	)
}

// NewPrefill returns an empty variant for the document type.
func NewPrefill(documentType DocumentType) (Prefill, error) {
	switch documentType {
	case DocumentTypeClaims:
		return &ClaimsPrefill{}, nil
	case DocumentTypeAuthorityToAct:
		return &AuthorityToActPrefill{}, nil
	case DocumentTypeNotAtFaultRental:
		return &NotAtFaultRentalPrefill{}, nil
	case DocumentTypeCertisRental:
		return &CertisRentalPrefill{}, nil
	case DocumentTypeDirectionToPay:
		return &DirectionToPayPrefill{}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidDocumentType, "%q", documentType)
	}
}

// DecodePrefill builds and validates the variant for documentType from flat key/value
// data. Unknown keys are rejected so misspelt fields never silently vanish.
func DecodePrefill(documentType DocumentType, values map[string]string) (Prefill, error) {
	prefill, err := assignPrefill(documentType, values)
	if err != nil {
		return nil, err
	}
	if err := ValidatePrefill(prefill); err != nil {
		return nil, err
	}
	return prefill, nil
}

// ValidatePrefill checks required fields and per-field formats.
func ValidatePrefill(p Prefill) error {
	errs := validation.Errors{}
	for _, b := range p.bindings() {
		rules := make([]validation.Rule, 0, len(b.rules)+2)
		if b.required {
			rules = append(rules, validation.Required, customValidation.NotBlank)
		}
		rules = append(rules, b.rules...)
		if err := validation.Validate(*b.value, rules...); err != nil {
			errs[b.key] = err
		}
	}
	if err := errs.Filter(); err != nil {
		return errors.Wrap(ErrInvalidPrefill, err.Error())
	}
	return nil
}

// PrefillValues flattens a variant into key/value pairs, omitting empty fields.
func PrefillValues(p Prefill) map[string]string {
	values := make(map[string]string)
	for _, b := range p.bindings() {
		if *b.value != "" {
			values[b.key] = *b.value
		}
	}
	return values
}

// PrefillKeys returns the field keys of a document type in display order.
func PrefillKeys(documentType DocumentType) []string {
	prefill, err := NewPrefill(documentType)
	if err != nil {
		return nil
	}
	bindings := prefill.bindings()
	keys := make([]string, len(bindings))
	for i, b := range bindings {
		keys[i] = b.key
	}
	return keys
}

// MarshalPrefill serializes a snapshot for storage.
func MarshalPrefill(p Prefill) ([]byte, error) {
	return json.Marshal(PrefillValues(p))
}

// UnmarshalPrefill restores a stored snapshot. Stored snapshots were validated at
// issue time, so only the shape is checked here.
func UnmarshalPrefill(documentType DocumentType, data []byte) (Prefill, error) {
	values := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal prefill")
		}
	}
	return assignPrefill(documentType, values)
}

// RestorePrefill rebuilds a variant from flat values without validating them.
// Unknown keys are still rejected.
func RestorePrefill(documentType DocumentType, values map[string]string) (Prefill, error) {
	return assignPrefill(documentType, values)
}

func assignPrefill(documentType DocumentType, values map[string]string) (Prefill, error) {
	prefill, err := NewPrefill(documentType)
	if err != nil {
		return nil, err
	}

	known := make(map[string]*string)
	for _, b := range prefill.bindings() {
		known[b.key] = b.value
	}

	var unknown []string
	for key, value := range values {
		target, ok := known[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		*target = strings.TrimSpace(value)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.Wrapf(ErrInvalidPrefill, "unknown fields for %s: %s", documentType, strings.Join(unknown, ", "))
	}

	return prefill, nil
}

func fieldsOf(p Prefill) []Field {
	bindings := p.bindings()
	fields := make([]Field, len(bindings))
	for i, b := range bindings {
		fields[i] = Field{
			Key:      b.key,
			Label:    b.label,
			Section:  b.section,
			Value:    *b.value,
			Required: b.required,
		}
	}
	return fields
}
