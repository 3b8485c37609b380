// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/recoverydesk/esign/internal/signature/domain"
	customValidation "github.com/recoverydesk/esign/internal/validation"
)

// RecipientRequest identifies the person asked to sign.
type RecipientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Validate checks the contact formats and that at least one contact is present.
func (r RecipientRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 255)),
		validation.Field(&r.Email,
			validation.When(strings.TrimSpace(r.Phone) == "", validation.Required.Error("email or phone is required")),
			customValidation.Email,
		),
		validation.Field(&r.Phone, customValidation.Phone),
	)
}

// ToDomain converts the request into a domain.Recipient.
func (r *RecipientRequest) ToDomain() domain.Recipient {
	return domain.Recipient{
		Name:  strings.TrimSpace(r.Name),
		Email: strings.TrimSpace(r.Email),
		Phone: strings.TrimSpace(r.Phone),
	}
}

// IssueSignatureRequest contains the parameters for issuing a signature request.
type IssueSignatureRequest struct {
	CaseID       string            `json:"case_id"`
	CaseNumber   string            `json:"case_number"`
	DocumentType string            `json:"document_type"`
	Recipient    RecipientRequest  `json:"recipient"`
	Prefill      map[string]string `json:"prefill"`
	// SendVia delivers the signing link right after issuance: "email" or "sms".
	SendVia string `json:"send_via"`
}

// Validate checks if the issue request is valid. Prefill fields are validated
// against the document type by domain.DecodePrefill.
func (r *IssueSignatureRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CaseID,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 64),
		),
		validation.Field(&r.CaseNumber, validation.Length(0, 64)),
		validation.Field(&r.DocumentType,
			validation.Required,
			validation.By(validateDocumentType),
		),
		validation.Field(&r.Recipient),
		validation.Field(&r.Prefill, validation.Required),
		validation.Field(&r.SendVia, validation.In("email", "sms")),
	)
}

// SendSignatureRequest selects the delivery channel of a signing link.
type SendSignatureRequest struct {
	Method string `json:"method"` // "email" or "sms"
}

// Validate checks if the send request is valid.
func (r *SendSignatureRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Method,
			validation.Required,
			validation.In("email", "sms"),
		),
	)
}

// SubmitFormRequest is a completed internally hosted form.
type SubmitFormRequest struct {
	// SignatureImage is a base64 PNG or JPEG, optionally as a data URL.
	SignatureImage string            `json:"signature_image"`
	SignerName     string            `json:"signer_name"`
	TermsAccepted  bool              `json:"terms_accepted"`
	Answers        map[string]string `json:"answers"`
}

// Validate checks if the submit request is valid.
func (r *SubmitFormRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SignatureImage,
			validation.Required,
			customValidation.NotBlank,
		),
		validation.Field(&r.SignerName,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&r.TermsAccepted, validation.Required.Error("terms must be accepted")),
	)
}

func validateDocumentType(value interface{}) error {
	s, _ := value.(string)
	if _, err := domain.ParseDocumentType(s); err != nil {
		return validation.NewError("validation_document_type", "must be a supported document type")
	}
	return nil
}
