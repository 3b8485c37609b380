package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/notification"
	"github.com/recoverydesk/esign/internal/retry"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/service"
)

type dispatchUseCase struct {
	tokenRepo   TokenRepository
	linkBuilder service.LinkBuilder
	sender      notification.Sender
	audit       AuditRecorder
	policy      retry.Policy
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatchUseCase creates the notification dispatcher. policy bounds delivery
// attempts per Send; the dispatcher performs no deduplication across calls.
func NewDispatchUseCase(
	tokenRepo TokenRepository,
	linkBuilder service.LinkBuilder,
	sender notification.Sender,
	audit AuditRecorder,
	policy retry.Policy,
	logger *slog.Logger,
) DispatchUseCase {
	return &dispatchUseCase{
		tokenRepo:   tokenRepo,
		linkBuilder: linkBuilder,
		sender:      sender,
		audit:       audit,
		policy:      policy,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (d *dispatchUseCase) Send(
	ctx context.Context,
	tokenID string,
	method domain.ContactMethod,
	actor auditDomain.Actor,
) (*domain.DeliveryResult, error) {
	if _, err := domain.ParseContactMethod(string(method)); err != nil {
		return nil, err
	}

	token, err := d.tokenRepo.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	switch {
	case token.Status == domain.StatusCompleted:
		return nil, domain.ErrAlreadyCompleted
	case token.Status == domain.StatusExpired || token.IsExpired(d.now()):
		return nil, domain.ErrTokenExpired
	case !token.IsActive():
		return nil, domain.ErrTokenNotUsable
	}

	if !token.Recipient.Has(method) {
		return nil, apperrors.Wrapf(domain.ErrContactMissing, "%s", method)
	}

	if token.FormLink == "" {
		if err := d.backfillLink(ctx, token); err != nil {
			return nil, err
		}
	}

	request := notification.SigningRequest{
		RecipientName: token.Recipient.Name,
		DocumentTitle: token.DocumentType.Title(),
		CaseNumber:    token.CaseNumber,
		Link:          token.FormLink,
		ExpiresAt:     token.ExpiresAt,
	}

	var email notification.Email
	if method == domain.ContactMethodEmail {
		email, err = notification.SigningRequestEmail(token.Recipient.Email, request)
		if err != nil {
			return nil, err
		}
	}

	var messageID string
	attempts, err := d.policy.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		if method == domain.ContactMethodEmail {
			messageID, sendErr = d.sender.SendEmail(ctx, email)
		} else {
			messageID, sendErr = d.sender.SendSMS(ctx, notification.SigningRequestSMS(token.Recipient.Phone, request))
		}
		if apperrors.Is(sendErr, notification.ErrProviderRejected) {
			return retry.Permanent(sendErr)
		}
		return sendErr
	})
	if err != nil {
		d.logger.Warn("signing link delivery failed",
			slog.String("token_id", token.ID),
			slog.String("method", string(method)),
			slog.Int("attempts", attempts),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	sentAt := d.now()
	previous := token.Status
	if previous == domain.StatusPending {
		err := transition(ctx, d.tokenRepo, token, domain.StatusSent, sentAt)
		if err != nil && !apperrors.Is(err, domain.ErrStatusConflict) {
			return nil, apperrors.Wrap(err, "failed to mark signature token sent")
		}
		if err != nil {
			// the recipient was faster than us and the message is out either way
			d.logger.Info("token moved past sent during delivery", slog.String("token_id", token.ID))
		}
	}

	recordAudit(ctx, d.audit, d.logger, token, auditDomain.ActionNotificationSent, actor, map[string]any{
		"method":              string(method),
		"provider_message_id": messageID,
		"attempts":            attempts,
		"resend":              previous != domain.StatusPending,
	})

	return &domain.DeliveryResult{
		TokenID:           token.ID,
		Method:            method,
		ProviderMessageID: messageID,
		Attempts:          attempts,
		SentAt:            sentAt,
	}, nil
}

// backfillLink builds the signing link of a token whose issuance left it empty.
func (d *dispatchUseCase) backfillLink(ctx context.Context, token *domain.Token) error {
	link, err := d.linkBuilder.BuildLink(token.DocumentType, token.Prefill, token.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to build signing link")
	}
	if err := d.tokenRepo.UpdateFormLink(ctx, token.ID, link, d.now()); err != nil {
		if apperrors.Is(err, domain.ErrStatusConflict) {
			return domain.ErrTokenNotUsable
		}
		return err
	}
	token.FormLink = link
	return nil
}
