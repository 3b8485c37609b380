package usecase

import (
	"context"
	"log/slog"
	"time"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

// maxTransitionAttempts bounds how often a lost compare-and-set is re-read and retried.
const maxTransitionAttempts = 3

// recordAudit appends an audit entry for token. Audit failures never undo the
// action being audited; it reports whether the entry is not yet durably written.
func recordAudit(
	ctx context.Context,
	recorder AuditRecorder,
	logger *slog.Logger,
	token *domain.Token,
	action auditDomain.Action,
	actor auditDomain.Actor,
	metadata map[string]any,
) bool {
	_, err := recorder.Record(ctx, token.CaseID, token.ID, action, actor, metadata)
	switch {
	case err == nil:
		return false
	case apperrors.Is(err, auditDomain.ErrDeferred):
		logger.Warn("audit entry deferred",
			slog.String("token_id", token.ID),
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
	default:
		logger.Error("audit entry lost",
			slog.String("token_id", token.ID),
			slog.String("case_id", token.CaseID),
			slog.String("action", string(action)),
			slog.Any("metadata", metadata),
			slog.Any("error", err),
		)
	}
	return true
}

// transition moves token to next with compare-and-set. A lost race is resolved by
// re-reading the token: if another writer already reached next it succeeds, and
// if next is still reachable from the new status it tries again.
func transition(
	ctx context.Context,
	tokenRepo TokenRepository,
	token *domain.Token,
	next domain.Status,
	now time.Time,
) error {
	for attempt := 1; ; attempt++ {
		err := tokenRepo.TransitionStatus(ctx, token.ID, token.Status, next, now)
		if err == nil {
			applyTransition(token, next, now)
			return nil
		}
		if !apperrors.Is(err, domain.ErrStatusConflict) || attempt == maxTransitionAttempts {
			return err
		}

		current, getErr := tokenRepo.Get(ctx, token.ID)
		if getErr != nil {
			return getErr
		}
		*token = *current
		if token.Status == next {
			return nil
		}
		if !domain.CanTransition(token.Status, next) {
			return domain.ErrStatusConflict
		}
	}
}

func applyTransition(token *domain.Token, next domain.Status, now time.Time) {
	token.Status = next
	token.UpdatedAt = now
	switch next {
	case domain.StatusAccessed:
		token.AccessedAt = &now
	case domain.StatusCompleted:
		token.CompletedAt = &now
	}
}
