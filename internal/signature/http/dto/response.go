package dto

import (
	"time"

	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/usecase"
)

// SignatureRequestResponse represents a signature token in API responses. The
// prefill snapshot is never echoed back.
type SignatureRequestResponse struct {
	Token        string     `json:"token"`
	CaseID       string     `json:"case_id"`
	CaseNumber   string     `json:"case_number"`
	DocumentType string     `json:"document_type"`
	Status       string     `json:"status"`
	FormLink     string     `json:"form_link,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AccessedAt   *time.Time `json:"accessed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// MapTokenToResponse converts a domain token to an API response.
func MapTokenToResponse(token *domain.Token) SignatureRequestResponse {
	return SignatureRequestResponse{
		Token:        token.ID,
		CaseID:       token.CaseID,
		CaseNumber:   token.CaseNumber,
		DocumentType: string(token.DocumentType),
		Status:       string(token.Status),
		FormLink:     token.FormLink,
		CreatedAt:    token.CreatedAt,
		ExpiresAt:    token.ExpiresAt,
		AccessedAt:   token.AccessedAt,
		CompletedAt:  token.CompletedAt,
	}
}

// ListSignatureRequestsResponse represents the signature requests of a case.
type ListSignatureRequestsResponse struct {
	Data []SignatureRequestResponse `json:"data"`
}

// MapTokensToListResponse converts domain tokens to a list API response.
func MapTokensToListResponse(tokens []*domain.Token) ListSignatureRequestsResponse {
	responses := make([]SignatureRequestResponse, 0, len(tokens))
	for _, token := range tokens {
		responses = append(responses, MapTokenToResponse(token))
	}
	return ListSignatureRequestsResponse{Data: responses}
}

// DeliveryResponse represents a dispatched signing link.
type DeliveryResponse struct {
	Method            string    `json:"method"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Attempts          int       `json:"attempts"`
	SentAt            time.Time `json:"sent_at"`
}

// MapDeliveryToResponse converts a delivery result to an API response.
func MapDeliveryToResponse(result *domain.DeliveryResult) DeliveryResponse {
	return DeliveryResponse{
		Method:            string(result.Method),
		ProviderMessageID: result.ProviderMessageID,
		Attempts:          result.Attempts,
		SentAt:            result.SentAt,
	}
}

// IssueSignatureResponse is returned by issuance. When delivery was requested
// and failed, the token still exists and DeliveryError says why.
type IssueSignatureResponse struct {
	SignatureRequestResponse
	Delivery      *DeliveryResponse `json:"delivery,omitempty"`
	DeliveryError string            `json:"delivery_error,omitempty"`
}

// FieldResponse is one prefilled field as shown on the signing portal.
type FieldResponse struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Section string `json:"section"`
	Value   string `json:"value"`
}

// TokenStateResponse is what the signing portal shows for a token.
type TokenStateResponse struct {
	IsValid       bool            `json:"is_valid"`
	IsExpired     bool            `json:"is_expired"`
	IsCompleted   bool            `json:"is_completed"`
	IsFailed      bool            `json:"is_failed"`
	Message       string          `json:"message"`
	DocumentType  string          `json:"document_type,omitempty"`
	DocumentTitle string          `json:"document_title,omitempty"`
	CaseNumber    string          `json:"case_number,omitempty"`
	FormLink      string          `json:"form_link,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Fields        []FieldResponse `json:"fields,omitempty"`
}

// UnknownTokenMessage is shown for a token that does not exist.
const UnknownTokenMessage = "This signing link is not valid. Please check the link or contact us."

// MapTokenStateToResponse converts a token and its state for the portal. The form
// link and prefilled fields are only included while the token can still be signed.
func MapTokenStateToResponse(token *domain.Token, state domain.TokenState) TokenStateResponse {
	expiresAt := token.ExpiresAt
	response := TokenStateResponse{
		IsValid:       state.IsValid,
		IsExpired:     state.IsExpired,
		IsCompleted:   state.IsCompleted,
		IsFailed:      state.IsFailed,
		Message:       state.Message,
		DocumentType:  string(token.DocumentType),
		DocumentTitle: token.DocumentType.Title(),
		CaseNumber:    token.CaseNumber,
		ExpiresAt:     &expiresAt,
	}
	if !state.IsValid {
		return response
	}

	response.FormLink = token.FormLink
	if token.Prefill != nil {
		for _, field := range token.Prefill.Fields() {
			if field.Value == "" {
				continue
			}
			response.Fields = append(response.Fields, FieldResponse{
				Key:     field.Key,
				Label:   field.Label,
				Section: string(field.Section),
				Value:   field.Value,
			})
		}
	}
	return response
}

// CompletionResponse is returned to the form provider or portal after a submission.
type CompletionResponse struct {
	Status       string `json:"status"` // "completed" or "duplicate"
	Token        string `json:"token"`
	DocumentID   string `json:"document_id,omitempty"`
	AuditPending bool   `json:"audit_pending,omitempty"`
}

// MapCompletionToResponse converts a completion result to an API response.
func MapCompletionToResponse(result *domain.CompletionResult) CompletionResponse {
	response := CompletionResponse{Status: "completed"}
	if result.Duplicate {
		response.Status = "duplicate"
	}
	if result.Token != nil {
		response.Token = result.Token.ID
	}
	if result.Document != nil {
		response.DocumentID = result.Document.ID.String()
	}
	response.AuditPending = result.AuditPending
	return response
}

// DocumentVerificationResponse reports the integrity of a stored document.
type DocumentVerificationResponse struct {
	DocumentID    string    `json:"document_id"`
	CaseID        string    `json:"case_id"`
	Token         string    `json:"token"`
	KeyVersion    uint      `json:"key_version"`
	Algorithm     string    `json:"algorithm"`
	StoredHash    string    `json:"stored_hash"`
	ComputedHash  string    `json:"computed_hash"`
	HashMatches   bool      `json:"hash_matches"`
	Decrypted     bool      `json:"decrypted"`
	PlaintextSize int       `json:"plaintext_size,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MapVerificationToResponse converts a document verification to an API response.
func MapVerificationToResponse(v *usecase.DocumentVerification) DocumentVerificationResponse {
	return DocumentVerificationResponse{
		DocumentID:    v.Document.ID.String(),
		CaseID:        v.Document.CaseID,
		Token:         v.Document.TokenID,
		KeyVersion:    v.Document.KeyVersion,
		Algorithm:     v.Document.EncryptionAlgorithm,
		StoredHash:    v.Document.IntegrityHash,
		ComputedHash:  v.ComputedHash,
		HashMatches:   v.HashMatches,
		Decrypted:     v.Decrypted,
		PlaintextSize: v.PlaintextSize,
		CreatedAt:     v.Document.CreatedAt,
	}
}
