// Package usecase implements the signature request workflow: issuing tokens,
// delivering signing links and completing submissions into sealed documents.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

// TokenRepository persists signature tokens. Status changes are compare-and-set.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	Get(ctx context.Context, id string) (*domain.Token, error)
	GetActive(ctx context.Context, caseID string, documentType domain.DocumentType) (*domain.Token, error)
	ListByCase(ctx context.Context, caseID string) ([]*domain.Token, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Token, error)
	UpdateFormLink(ctx context.Context, id, link string, at time.Time) error
	TransitionStatus(ctx context.Context, id string, expected, next domain.Status, at time.Time) error
}

// SignatureRecordRepository persists signature evidence, one record per token.
type SignatureRecordRepository interface {
	Create(ctx context.Context, record *domain.SignatureRecord) error
	GetByTokenID(ctx context.Context, tokenID string) (*domain.SignatureRecord, error)
}

// DocumentRepository persists sealed document metadata, one document per token.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.GeneratedDocument) error
	Get(ctx context.Context, id uuid.UUID) (*domain.GeneratedDocument, error)
	GetByTokenID(ctx context.Context, tokenID string) (*domain.GeneratedDocument, error)
	ListByCase(ctx context.Context, caseID string) ([]*domain.GeneratedDocument, error)
}

// DocumentStore holds sealed document bytes.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// DocumentSealer encrypts documents under the active document key version.
type DocumentSealer interface {
	Seal(ctx context.Context, payload []byte, alg cryptoDomain.Algorithm) ([]byte, uint, error)
	Open(ctx context.Context, sealed []byte, keyVersion uint) ([]byte, error)
}

// AuditRecorder appends audit entries. An error matching auditDomain.ErrDeferred
// means the entry was queued rather than lost.
type AuditRecorder interface {
	Record(
		ctx context.Context,
		caseID, tokenID string,
		action auditDomain.Action,
		actor auditDomain.Actor,
		metadata map[string]any,
	) (*auditDomain.AuditLog, error)
}

// EventPublisher queues work for the outbox worker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// IssueInput is a request for a new signature token.
type IssueInput struct {
	CaseID     string
	CaseNumber string
	Recipient  domain.Recipient
	Prefill    domain.Prefill
	Actor      auditDomain.Actor
}

// TokenUseCase issues tokens and answers questions about them.
type TokenUseCase interface {
	// Issue creates a pending token, builds its signing link and records the issuance.
	Issue(ctx context.Context, input IssueInput) (*domain.Token, error)

	// HasPendingToken reports whether a non-terminal token exists for the case and
	// document type. An overdue token found here is expired on the spot.
	HasPendingToken(ctx context.Context, caseID string, documentType domain.DocumentType) (bool, error)

	// UpdateFormLink backfills the signing link. Setting the same link twice is a no-op.
	UpdateFormLink(ctx context.Context, tokenID, link string) error

	Get(ctx context.Context, tokenID string) (*domain.Token, error)
	ListByCase(ctx context.Context, caseID string) ([]*domain.Token, error)

	// Validate returns the token with its recipient-facing state.
	Validate(ctx context.Context, tokenID string) (*domain.Token, domain.TokenState, error)

	// ExpireOverdue moves up to limit overdue active tokens to expired.
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// DispatchUseCase delivers signing links.
type DispatchUseCase interface {
	// Send delivers the signing link through method. On failure the token status
	// is left unchanged so the caller may retry.
	Send(
		ctx context.Context,
		tokenID string,
		method domain.ContactMethod,
		actor auditDomain.Actor,
	) (*domain.DeliveryResult, error)
}

// DocumentVerification is the result of checking a stored document.
type DocumentVerification struct {
	Document     *domain.GeneratedDocument
	ComputedHash string
	HashMatches  bool
	// Decrypted is set when the document was also opened with its key version.
	Decrypted bool
	// PlaintextSize is the size of the decrypted document, if Decrypted.
	PlaintextSize int
}

// CompletionUseCase drives a token from access to a sealed, stored document.
type CompletionUseCase interface {
	// MarkAccessed records that the recipient opened the form.
	MarkAccessed(ctx context.Context, tokenID string, actor auditDomain.Actor) (*domain.Token, error)

	// HandleSubmission completes the token addressed by a submission. Redelivery of a
	// completed submission succeeds with Duplicate set and no side effects.
	HandleSubmission(ctx context.Context, submission *domain.Submission) (*domain.CompletionResult, error)

	// RetryGeneration re-runs generation and sealing from the stored signature record.
	RetryGeneration(ctx context.Context, tokenID string, actor auditDomain.Actor) (*domain.CompletionResult, error)

	// VerifyDocument re-hashes a stored sealed document and optionally decrypts it.
	VerifyDocument(ctx context.Context, documentID uuid.UUID, decrypt bool) (*DocumentVerification, error)

	// HandleCompletedEvent sends the completion notification queued for a token.
	HandleCompletedEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error
}
