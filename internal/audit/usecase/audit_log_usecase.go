package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/audit/service"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	"github.com/recoverydesk/esign/internal/retry"
)

const verifyPageSize = 500

type auditLogUseCase struct {
	auditLogRepo AuditLogRepository
	signer       service.AuditSigner
	publisher    EventPublisher
	policy       retry.Policy
	logger       *slog.Logger
}

// NewAuditLogUseCase creates an AuditLogUseCase. A nil signer stores entries
// unsigned; a nil publisher disables the outbox fallback.
func NewAuditLogUseCase(
	auditLogRepo AuditLogRepository,
	signer service.AuditSigner,
	publisher EventPublisher,
	policy retry.Policy,
	logger *slog.Logger,
) AuditLogUseCase {
	return &auditLogUseCase{
		auditLogRepo: auditLogRepo,
		signer:       signer,
		publisher:    publisher,
		policy:       policy,
		logger:       logger,
	}
}

func (a *auditLogUseCase) Record(
	ctx context.Context,
	caseID, tokenID string,
	action auditDomain.Action,
	actor auditDomain.Actor,
	metadata map[string]any,
) (*auditDomain.AuditLog, error) {
	if caseID == "" {
		return nil, auditDomain.ErrCaseIDRequired
	}
	if !action.Valid() {
		return nil, apperrors.Wrapf(auditDomain.ErrInvalidAction, "%q", action)
	}

	auditLog := &auditDomain.AuditLog{
		ID:             uuid.Must(uuid.NewV7()),
		CaseID:         caseID,
		TokenID:        tokenID,
		Action:         action,
		ActorIP:        actor.IP,
		ActorUserAgent: actor.UserAgent,
		Metadata:       metadata,
		// the signature covers microseconds, the precision both databases keep
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	if a.signer != nil {
		signature, err := a.signer.Sign(auditLog)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to sign audit log")
		}
		auditLog.Signature = signature
		auditLog.IsSigned = true
	}

	attempts, err := a.policy.Do(ctx, func(ctx context.Context) error {
		return a.auditLogRepo.Create(ctx, auditLog)
	})
	if err == nil {
		return auditLog, nil
	}

	a.logger.Warn("audit log write failed, deferring to outbox",
		slog.String("audit_log_id", auditLog.ID.String()),
		slog.String("case_id", caseID),
		slog.String("action", string(action)),
		slog.Int("attempts", attempts),
		slog.Any("error", err),
	)

	if a.publisher == nil {
		return nil, apperrors.Wrap(err, "failed to create audit log")
	}
	if pubErr := a.publisher.Publish(ctx, outboxDomain.EventTypeAuditLogAppend, auditLog); pubErr != nil {
		return nil, apperrors.Join(
			apperrors.Wrap(err, "failed to create audit log"),
			apperrors.Wrap(pubErr, "failed to queue audit log"),
		)
	}

	return auditLog, fmt.Errorf("%w: %w", auditDomain.ErrDeferred, err)
}

func (a *auditLogUseCase) Append(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	if auditLog.CaseID == "" {
		return auditDomain.ErrCaseIDRequired
	}
	if !auditLog.Action.Valid() {
		return apperrors.Wrapf(auditDomain.ErrInvalidAction, "%q", auditLog.Action)
	}
	if err := a.auditLogRepo.Create(ctx, auditLog); err != nil {
		return apperrors.Wrap(err, "failed to append audit log")
	}
	return nil
}

// List returns entries oldest first.
func (a *auditLogUseCase) List(ctx context.Context, filter auditDomain.Filter) ([]*auditDomain.AuditLog, error) {
	if filter.CreatedAtFrom != nil && filter.CreatedAtTo != nil && filter.CreatedAtFrom.After(*filter.CreatedAtTo) {
		return nil, auditDomain.ErrInvalidTimeWindow
	}

	auditLogs, err := a.auditLogRepo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	return auditLogs, nil
}

func (a *auditLogUseCase) Verify(ctx context.Context, from, to *time.Time) (*auditDomain.VerifyReport, error) {
	if a.signer == nil {
		return nil, apperrors.New("audit signing key is not configured")
	}

	filter := auditDomain.Filter{CreatedAtFrom: from, CreatedAtTo: to, Limit: verifyPageSize}
	report := &auditDomain.VerifyReport{}

	for {
		page, err := a.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		for _, entry := range page {
			report.Total++
			switch err := a.signer.Verify(entry); {
			case err == nil:
				report.Valid++
			case apperrors.Is(err, auditDomain.ErrSignatureMissing):
				report.Unsigned++
			default:
				report.Invalid = append(report.Invalid, entry.ID)
			}
		}

		if len(page) < verifyPageSize {
			return report, nil
		}
		filter.Offset += verifyPageSize
	}
}

func (a *auditLogUseCase) HandleAppendEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	var auditLog auditDomain.AuditLog
	if err := event.DecodePayload(&auditLog); err != nil {
		return apperrors.Wrap(err, "failed to decode audit log event")
	}
	return a.Append(ctx, &auditLog)
}
