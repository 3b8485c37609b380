// Package usecase records and verifies audit entries. Writes that fail after
// the retry policy is exhausted are handed to the outbox instead of being lost.
package usecase

import (
	"context"
	"time"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
)

// AuditLogRepository persists audit entries. Create must be idempotent on ID.
type AuditLogRepository interface {
	Create(ctx context.Context, auditLog *auditDomain.AuditLog) error
	List(ctx context.Context, filter auditDomain.Filter) ([]*auditDomain.AuditLog, error)
}

// EventPublisher queues work for the outbox worker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// AuditLogUseCase is the audit trail of the signature workflow.
type AuditLogUseCase interface {
	// Record builds, signs and stores an entry. When the store stays unavailable the
	// entry is queued and the returned error matches auditDomain.ErrDeferred.
	Record(
		ctx context.Context,
		caseID, tokenID string,
		action auditDomain.Action,
		actor auditDomain.Actor,
		metadata map[string]any,
	) (*auditDomain.AuditLog, error)

	// Append stores an already built entry. Appending the same entry twice is a no-op.
	Append(ctx context.Context, auditLog *auditDomain.AuditLog) error

	List(ctx context.Context, filter auditDomain.Filter) ([]*auditDomain.AuditLog, error)

	// Verify checks the signature of every entry created within [from, to].
	Verify(ctx context.Context, from, to *time.Time) (*auditDomain.VerifyReport, error)

	// HandleAppendEvent re-applies an entry queued by Record.
	HandleAppendEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error
}
