// Package domain defines the append-only audit log of the signing workflow.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/recoverydesk/esign/internal/errors"
)

// Action is what happened to a signature request.
type Action string

const (
	ActionTokenIssued              Action = "token_issued"
	ActionNotificationSent         Action = "notification_sent"
	ActionFormAccessed             Action = "form_accessed"
	ActionDocumentSigned           Action = "document_signed"
	ActionDocumentGenerationFailed Action = "document_generation_failed"
	// ActionTokenExpired is written when an overdue token is moved to expired.
	ActionTokenExpired Action = "token_expired"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionTokenIssued, ActionNotificationSent, ActionFormAccessed,
		ActionDocumentSigned, ActionDocumentGenerationFailed, ActionTokenExpired:
		return true
	}
	return false
}

var (
	ErrInvalidAction     = errors.Wrap(errors.ErrInvalidInput, "unknown audit action")
	ErrCaseIDRequired    = errors.Wrap(errors.ErrInvalidInput, "audit entry requires a case id")
	ErrSignatureInvalid  = errors.New("audit log signature mismatch")
	ErrSignatureMissing  = errors.New("audit log is not signed")
	ErrInvalidTimeWindow = errors.Wrap(errors.ErrInvalidInput, "audit time window is invalid")

	// ErrDeferred means the entry could not be written now and was queued in the outbox.
	ErrDeferred = errors.New("audit entry deferred to outbox")
)

// AuditLog is one immutable audit entry. Entries are appended, never updated
// or deleted. Re-appending an entry with an existing ID is a no-op.
type AuditLog struct {
	ID             uuid.UUID
	CaseID         string
	TokenID        string
	Action         Action
	ActorIP        string
	ActorUserAgent string
	Metadata       map[string]any
	Signature      []byte
	IsSigned       bool
	CreatedAt      time.Time
}

// Actor identifies who triggered an action, as seen by the HTTP layer.
type Actor struct {
	IP        string
	UserAgent string
}

// Filter narrows a listing. Zero values mean no restriction.
type Filter struct {
	CaseID        string
	CreatedAtFrom *time.Time
	CreatedAtTo   *time.Time
	Offset        int
	Limit         int
}

// VerifyReport summarizes a signature verification run.
type VerifyReport struct {
	Total    int
	Valid    int
	Unsigned int
	Invalid  []uuid.UUID
}

// Passed reports whether every signed entry verified.
func (r *VerifyReport) Passed() bool {
	return len(r.Invalid) == 0
}
