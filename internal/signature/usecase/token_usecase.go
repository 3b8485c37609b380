package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/service"
)

type tokenUseCase struct {
	tokenRepo   TokenRepository
	generator   service.TokenGenerator
	linkBuilder service.LinkBuilder
	audit       AuditRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewTokenUseCase creates the token issuer.
func NewTokenUseCase(
	tokenRepo TokenRepository,
	generator service.TokenGenerator,
	linkBuilder service.LinkBuilder,
	audit AuditRecorder,
	logger *slog.Logger,
) TokenUseCase {
	return &tokenUseCase{
		tokenRepo:   tokenRepo,
		generator:   generator,
		linkBuilder: linkBuilder,
		audit:       audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (t *tokenUseCase) Issue(ctx context.Context, input IssueInput) (*domain.Token, error) {
	caseID := strings.TrimSpace(input.CaseID)
	if caseID == "" {
		return nil, domain.ErrCaseRequired
	}
	if input.Prefill == nil {
		return nil, apperrors.Wrap(domain.ErrInvalidPrefill, "prefill is required")
	}
	documentType := input.Prefill.DocumentType()
	if !documentType.Valid() {
		return nil, apperrors.Wrapf(domain.ErrInvalidDocumentType, "%q", documentType)
	}
	if !input.Recipient.Has(domain.ContactMethodEmail) && !input.Recipient.Has(domain.ContactMethodSMS) {
		return nil, domain.ErrRecipientRequired
	}
	if err := domain.ValidatePrefill(input.Prefill); err != nil {
		return nil, err
	}

	pending, err := t.HasPendingToken(ctx, caseID, documentType)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.ErrPendingTokenExists
	}

	id, err := t.generator.Generate()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate signature token")
	}

	now := t.now()
	token := domain.NewToken(id, caseID, input.CaseNumber, input.Recipient, input.Prefill, now)

	// the unique index on active tokens is the authority when two issuers race past
	// the HasPendingToken check
	if err := t.tokenRepo.Create(ctx, token); err != nil {
		return nil, err
	}

	link, err := t.linkBuilder.BuildLink(documentType, input.Prefill, token.ID)
	if err != nil {
		t.logger.Warn("failed to build signing link, leaving it empty",
			slog.String("token_id", token.ID),
			slog.String("document_type", string(documentType)),
			slog.Any("error", err),
		)
	} else if err := t.tokenRepo.UpdateFormLink(ctx, token.ID, link, now); err != nil {
		t.logger.Warn("failed to store signing link",
			slog.String("token_id", token.ID),
			slog.Any("error", err),
		)
	} else {
		token.FormLink = link
	}

	recordAudit(ctx, t.audit, t.logger, token, auditDomain.ActionTokenIssued, input.Actor, map[string]any{
		"document_type": string(documentType),
		"expires_at":    token.ExpiresAt.Format(time.RFC3339),
		"has_link":      token.FormLink != "",
	})

	return token, nil
}

func (t *tokenUseCase) HasPendingToken(
	ctx context.Context,
	caseID string,
	documentType domain.DocumentType,
) (bool, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		token, err := t.tokenRepo.GetActive(ctx, caseID, documentType)
		if apperrors.Is(err, domain.ErrTokenNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		now := t.now()
		if !token.IsExpired(now) {
			return true, nil
		}

		err = t.expire(ctx, token, now, auditDomain.Actor{})
		if err == nil {
			return false, nil
		}
		if !apperrors.Is(err, domain.ErrStatusConflict) {
			return false, err
		}
	}
	return false, domain.ErrStatusConflict
}

func (t *tokenUseCase) UpdateFormLink(ctx context.Context, tokenID, link string) error {
	if strings.TrimSpace(link) == "" {
		return domain.ErrFormLinkRequired
	}

	token, err := t.tokenRepo.Get(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.FormLink == link {
		return nil
	}
	if !token.IsActive() {
		return domain.ErrTokenImmutable
	}

	err = t.tokenRepo.UpdateFormLink(ctx, tokenID, link, t.now())
	if apperrors.Is(err, domain.ErrStatusConflict) {
		return domain.ErrTokenImmutable
	}
	return err
}

func (t *tokenUseCase) Get(ctx context.Context, tokenID string) (*domain.Token, error) {
	return t.tokenRepo.Get(ctx, tokenID)
}

func (t *tokenUseCase) ListByCase(ctx context.Context, caseID string) ([]*domain.Token, error) {
	return t.tokenRepo.ListByCase(ctx, caseID)
}

func (t *tokenUseCase) Validate(ctx context.Context, tokenID string) (*domain.Token, domain.TokenState, error) {
	if err := t.generator.Validate(tokenID); err != nil {
		return nil, domain.TokenState{}, domain.ErrInvalidToken
	}

	token, err := t.tokenRepo.Get(ctx, tokenID)
	if apperrors.Is(err, domain.ErrTokenNotFound) {
		return nil, domain.TokenState{}, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, domain.TokenState{}, err
	}
	return token, token.State(t.now()), nil
}

func (t *tokenUseCase) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	now := t.now()
	tokens, err := t.tokenRepo.ListOverdue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, token := range tokens {
		err := t.expire(ctx, token, now, auditDomain.Actor{})
		switch {
		case err == nil:
			expired++
		case apperrors.Is(err, domain.ErrStatusConflict):
			// moved on since it was listed; the next run sees its new state
			t.logger.Debug("skipping token that changed status", slog.String("token_id", token.ID))
		default:
			return expired, err
		}
	}
	return expired, nil
}

func (t *tokenUseCase) expire(ctx context.Context, token *domain.Token, now time.Time, actor auditDomain.Actor) error {
	previous := token.Status
	if err := t.tokenRepo.TransitionStatus(ctx, token.ID, previous, domain.StatusExpired, now); err != nil {
		return err
	}
	applyTransition(token, domain.StatusExpired, now)

	t.logger.Info("signature token expired",
		slog.String("token_id", token.ID),
		slog.String("case_id", token.CaseID),
		slog.String("previous_status", string(previous)),
	)
	recordAudit(ctx, t.audit, t.logger, token, auditDomain.ActionTokenExpired, actor, map[string]any{
		"previous_status": string(previous),
		"expires_at":      token.ExpiresAt.Format(time.RFC3339),
	})
	return nil
}
