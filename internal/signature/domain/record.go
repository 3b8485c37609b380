package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignatureRecord is the legal evidence of a signature. One per completed token,
// written before any document is generated and never updated.
type SignatureRecord struct {
	ID             uuid.UUID
	TokenID        string
	SignatureImage []byte
	SignerName     string
	SignedAt       time.Time
	IPAddress      string
	UserAgent      string
	TermsAccepted  bool
	SubmissionID   string
	FormID         string
	// Answers holds submitted form values beyond the prefill snapshot.
	Answers   map[string]string
	CreatedAt time.Time
}

// GeneratedDocument is the metadata of a sealed document. The sealed bytes live
// in blob storage under StoragePath.
type GeneratedDocument struct {
	ID                  uuid.UUID
	CaseID              string
	TokenID             string
	StoragePath         string
	EncryptionAlgorithm string
	KeyVersion          uint
	IntegrityHash       string
	Size                int64
	CreatedAt           time.Time
}

// Submission is a completed form as delivered by the form provider or the
// internally hosted form.
type Submission struct {
	SubmissionID   string
	FormID         string
	Token          string
	SignatureImage string
	SignerName     string
	TermsAccepted  bool
	Answers        map[string]string
	IPAddress      string
	UserAgent      string
}

// CompletionResult reports the outcome of a handled submission.
type CompletionResult struct {
	Token     *Token
	Record    *SignatureRecord
	Document  *GeneratedDocument
	Duplicate bool
	// AuditPending is set when the completion audit entry was queued for retry.
	AuditPending bool
}

// DeliveryResult reports a dispatched notification.
type DeliveryResult struct {
	TokenID           string
	Method            ContactMethod
	ProviderMessageID string
	Attempts          int
	SentAt            time.Time
}
