package usecase

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/notification"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	"github.com/recoverydesk/esign/internal/retry"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/service"
	"github.com/recoverydesk/esign/internal/storage"
	"github.com/recoverydesk/esign/internal/validation"
)

// CompletionConfig tunes document production.
type CompletionConfig struct {
	EncryptionAlgorithm cryptoDomain.Algorithm
	GenerationPolicy    retry.Policy
	// NotifyEmail receives a copy of every completion notification when set.
	NotifyEmail string
}

// completionEvent is the payload of an outbox signature.completed event.
type completionEvent struct {
	TokenID    string `json:"token_id"`
	DocumentID string `json:"document_id"`
}

type completionUseCase struct {
	tokenRepo  TokenRepository
	recordRepo SignatureRecordRepository
	docRepo    DocumentRepository
	generator  service.DocumentGenerator
	sealer     DocumentSealer
	store      DocumentStore
	audit      AuditRecorder
	publisher  EventPublisher
	sender     notification.Sender
	config     CompletionConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewCompletionUseCase creates the completion handler. A nil publisher disables
// completion notifications.
func NewCompletionUseCase(
	tokenRepo TokenRepository,
	recordRepo SignatureRecordRepository,
	docRepo DocumentRepository,
	generator service.DocumentGenerator,
	sealer DocumentSealer,
	store DocumentStore,
	audit AuditRecorder,
	publisher EventPublisher,
	sender notification.Sender,
	config CompletionConfig,
	logger *slog.Logger,
) CompletionUseCase {
	return &completionUseCase{
		tokenRepo:  tokenRepo,
		recordRepo: recordRepo,
		docRepo:    docRepo,
		generator:  generator,
		sealer:     sealer,
		store:      store,
		audit:      audit,
		publisher:  publisher,
		sender:     sender,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *completionUseCase) MarkAccessed(
	ctx context.Context,
	tokenID string,
	actor auditDomain.Actor,
) (*domain.Token, error) {
	token, err := c.tokenRepo.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	switch token.Status {
	case domain.StatusAccessed, domain.StatusCompleted:
		return token, nil
	case domain.StatusExpired:
		return nil, domain.ErrTokenExpired
	case domain.StatusFailed:
		return nil, domain.ErrTokenNotUsable
	}

	now := c.now()
	if token.IsExpired(now) {
		return nil, domain.ErrTokenExpired
	}

	previous := token.Status
	if err := transition(ctx, c.tokenRepo, token, domain.StatusAccessed, now); err != nil {
		if apperrors.Is(err, domain.ErrStatusConflict) && token.Status == domain.StatusCompleted {
			return token, nil
		}
		return nil, err
	}

	recordAudit(ctx, c.audit, c.logger, token, auditDomain.ActionFormAccessed, actor, map[string]any{
		"previous_status": string(previous),
	})
	return token, nil
}

func (c *completionUseCase) HandleSubmission(
	ctx context.Context,
	submission *domain.Submission,
) (*domain.CompletionResult, error) {
	tokenID := strings.TrimSpace(submission.Token)
	if tokenID == "" {
		return nil, apperrors.Wrap(domain.ErrInvalidToken, "submission carries no signature token")
	}

	token, err := c.tokenRepo.Get(ctx, tokenID)
	if apperrors.Is(err, domain.ErrTokenNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if token.Status == domain.StatusCompleted {
		c.logger.Info("duplicate submission for completed token",
			slog.String("token_id", token.ID),
			slog.String("submission_id", submission.SubmissionID),
		)
		return &domain.CompletionResult{Token: token, Duplicate: true}, nil
	}

	now := c.now()
	expired := token.Status == domain.StatusExpired || token.IsExpired(now)
	if expired || token.Status == domain.StatusFailed {
		// a redelivery after a failed or interrupted attempt finishes the stored
		// signature instead of capturing a new one
		record, err := c.recordRepo.GetByTokenID(ctx, token.ID)
		switch {
		case err == nil && recoverable(token, record):
			c.logger.Info("resuming stored signature on redelivery",
				slog.String("token_id", token.ID),
				slog.String("status", string(token.Status)),
				slog.String("submission_id", submission.SubmissionID),
			)
			return c.resume(ctx, token, record, actorOf(record))
		case err != nil && !apperrors.Is(err, domain.ErrRecordNotFound):
			return nil, err
		case expired:
			return nil, domain.ErrTokenExpired
		default:
			return nil, domain.ErrTokenNotUsable
		}
	}

	if strings.TrimSpace(submission.SignatureImage) == "" {
		return nil, domain.ErrSignatureMissing
	}
	if strings.TrimSpace(submission.SignerName) == "" {
		return nil, domain.ErrSignerNameMissing
	}
	if !submission.TermsAccepted {
		return nil, domain.ErrTermsNotAccepted
	}

	image, err := validation.DecodeImageData(submission.SignatureImage)
	if err != nil {
		// kept verbatim as evidence; the document renders a placeholder for it
		image = []byte(submission.SignatureImage)
	}

	record := &domain.SignatureRecord{
		ID:             uuid.Must(uuid.NewV7()),
		TokenID:        token.ID,
		SignatureImage: image,
		SignerName:     strings.TrimSpace(submission.SignerName),
		SignedAt:       now,
		IPAddress:      submission.IPAddress,
		UserAgent:      submission.UserAgent,
		TermsAccepted:  true,
		SubmissionID:   submission.SubmissionID,
		FormID:         submission.FormID,
		Answers:        submission.Answers,
		CreatedAt:      now,
	}
	if err := c.recordRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	return c.complete(ctx, token, record, actorOf(record))
}

func actorOf(record *domain.SignatureRecord) auditDomain.Actor {
	return auditDomain.Actor{IP: record.IPAddress, UserAgent: record.UserAgent}
}

// recoverable reports whether a stored signature may still become a document.
// An expired token qualifies only when the signature was captured in time.
func recoverable(token *domain.Token, record *domain.SignatureRecord) bool {
	switch token.Status {
	case domain.StatusCompleted:
		return false
	case domain.StatusExpired:
		return !record.SignedAt.After(token.ExpiresAt)
	default:
		return true
	}
}

func (c *completionUseCase) RetryGeneration(
	ctx context.Context,
	tokenID string,
	actor auditDomain.Actor,
) (*domain.CompletionResult, error) {
	token, err := c.tokenRepo.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.Status == domain.StatusCompleted {
		return nil, domain.ErrAlreadyCompleted
	}

	record, err := c.recordRepo.GetByTokenID(ctx, token.ID)
	if apperrors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.ErrNothingToRetry
	}
	if err != nil {
		return nil, err
	}
	if !recoverable(token, record) {
		return nil, domain.ErrNothingToRetry
	}

	c.logger.Info("retrying document generation",
		slog.String("token_id", token.ID),
		slog.String("status", string(token.Status)),
		slog.String("signature_record_id", record.ID.String()),
	)
	return c.resume(ctx, token, record, actor)
}

// resume finishes a token from its stored signature record, reusing a document
// sealed by an earlier attempt that stopped before completing the token.
func (c *completionUseCase) resume(
	ctx context.Context,
	token *domain.Token,
	record *domain.SignatureRecord,
	actor auditDomain.Actor,
) (*domain.CompletionResult, error) {
	doc, err := c.docRepo.GetByTokenID(ctx, token.ID)
	switch {
	case err == nil:
		if err := transition(ctx, c.tokenRepo, token, domain.StatusCompleted, c.now()); err != nil {
			return nil, apperrors.Wrap(err, "failed to complete signature token")
		}
		c.publishCompletion(ctx, token, doc)
		return &domain.CompletionResult{Token: token, Record: record, Document: doc}, nil
	case apperrors.Is(err, domain.ErrDocumentNotFound):
		return c.complete(ctx, token, record, actor)
	default:
		return nil, err
	}
}

// complete runs generation and sealing for a stored signature record and moves
// the token to completed.
func (c *completionUseCase) complete(
	ctx context.Context,
	token *domain.Token,
	record *domain.SignatureRecord,
	actor auditDomain.Actor,
) (*domain.CompletionResult, error) {
	raw, err := c.generate(ctx, token, record)
	if err != nil {
		c.fail(ctx, token, record, actor, err)
		return nil, err
	}

	doc, auditPending, err := c.sealAndStore(ctx, raw, token, record, actor)
	if apperrors.Is(err, domain.ErrDocumentExists) {
		// a concurrent attempt sealed the document first
		return nil, err
	}
	if err != nil {
		c.fail(ctx, token, record, actor, err)
		return nil, err
	}

	if err := transition(ctx, c.tokenRepo, token, domain.StatusCompleted, c.now()); err != nil {
		return nil, apperrors.Wrap(err, "failed to complete signature token")
	}

	c.logger.Info("signature request completed",
		slog.String("token_id", token.ID),
		slog.String("case_id", token.CaseID),
		slog.String("document_id", doc.ID.String()),
	)
	c.publishCompletion(ctx, token, doc)

	return &domain.CompletionResult{
		Token:        token,
		Record:       record,
		Document:     doc,
		AuditPending: auditPending,
	}, nil
}

func (c *completionUseCase) generate(
	ctx context.Context,
	token *domain.Token,
	record *domain.SignatureRecord,
) ([]byte, error) {
	input := service.NewDocumentInput(token, record)

	var raw []byte
	attempts, err := c.config.GenerationPolicy.Do(ctx, func(ctx context.Context) error {
		data, err := c.generator.Generate(ctx, input)
		if err != nil {
			return err
		}
		raw = data
		return nil
	})
	if err != nil {
		if !apperrors.Is(err, domain.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
		}
		return nil, apperrors.Wrapf(err, "after %d attempts", attempts)
	}
	return raw, nil
}

// fail moves the token to failed and records why. A failed token is out of reach
// of expiry; the signature record stays for redelivery and RetryGeneration.
func (c *completionUseCase) fail(
	ctx context.Context,
	token *domain.Token,
	record *domain.SignatureRecord,
	actor auditDomain.Actor,
	cause error,
) {
	c.logger.Error("document production failed",
		slog.String("token_id", token.ID),
		slog.String("case_id", token.CaseID),
		slog.String("signature_record_id", record.ID.String()),
		slog.Any("error", cause),
	)

	if token.Status != domain.StatusFailed {
		if err := transition(ctx, c.tokenRepo, token, domain.StatusFailed, c.now()); err != nil {
			c.logger.Error("failed to mark signature token failed",
				slog.String("token_id", token.ID),
				slog.Any("error", err),
			)
		}
	}

	recordAudit(ctx, c.audit, c.logger, token, auditDomain.ActionDocumentGenerationFailed, actor, map[string]any{
		"signature_record_id": record.ID.String(),
		"error":               cause.Error(),
	})
}

// sealAndStore encrypts raw under the active document key, hashes the sealed
// bytes, stores them and records the document. It reports whether the
// document_signed audit entry still has to reach the audit log.
func (c *completionUseCase) sealAndStore(
	ctx context.Context,
	raw []byte,
	token *domain.Token,
	record *domain.SignatureRecord,
	actor auditDomain.Actor,
) (*domain.GeneratedDocument, bool, error) {
	sealed, keyVersion, err := c.sealer.Seal(ctx, raw, c.config.EncryptionAlgorithm)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrEncryptionFailed, err)
	}

	doc := &domain.GeneratedDocument{
		ID:                  uuid.Must(uuid.NewV7()),
		CaseID:              token.CaseID,
		TokenID:             token.ID,
		EncryptionAlgorithm: string(c.config.EncryptionAlgorithm),
		KeyVersion:          keyVersion,
		IntegrityHash:       IntegrityHash(sealed),
		Size:                int64(len(sealed)),
		CreatedAt:           c.now(),
	}
	doc.StoragePath = storage.DocumentPath(token.CaseID, token.ID, doc.ID)

	err = c.store.Put(ctx, doc.StoragePath, sealed, map[string]string{
		"case_id":        doc.CaseID,
		"token_id":       doc.TokenID,
		"key_version":    strconv.FormatUint(uint64(doc.KeyVersion), 10),
		"integrity_hash": doc.IntegrityHash,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}

	if err := c.docRepo.Create(ctx, doc); err != nil {
		if delErr := c.store.Delete(ctx, doc.StoragePath); delErr != nil {
			c.logger.Error("failed to remove orphaned sealed document",
				slog.String("storage_path", doc.StoragePath),
				slog.Any("error", delErr),
			)
		}
		if apperrors.Is(err, domain.ErrDocumentExists) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}

	auditPending := recordAudit(ctx, c.audit, c.logger, token, auditDomain.ActionDocumentSigned, actor,
		map[string]any{
			"document_id":         doc.ID.String(),
			"signature_record_id": record.ID.String(),
			"signer_name":         record.SignerName,
			"key_version":         doc.KeyVersion,
			"integrity_hash":      doc.IntegrityHash,
			"submission_id":       record.SubmissionID,
		})
	return doc, auditPending, nil
}

// publishCompletion queues the completion notification. It is best effort.
func (c *completionUseCase) publishCompletion(ctx context.Context, token *domain.Token, doc *domain.GeneratedDocument) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Publish(ctx, outboxDomain.EventTypeSignatureCompleted, completionEvent{
		TokenID:    token.ID,
		DocumentID: doc.ID.String(),
	})
	if err != nil {
		c.logger.Warn("failed to queue completion notification",
			slog.String("token_id", token.ID),
			slog.Any("error", err),
		)
	}
}

func (c *completionUseCase) VerifyDocument(
	ctx context.Context,
	documentID uuid.UUID,
	decrypt bool,
) (*DocumentVerification, error) {
	doc, err := c.docRepo.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	sealed, err := c.store.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, err
	}

	computed := IntegrityHash(sealed)
	verification := &DocumentVerification{
		Document:     doc,
		ComputedHash: computed,
		HashMatches:  subtle.ConstantTimeCompare([]byte(computed), []byte(doc.IntegrityHash)) == 1,
	}
	if !decrypt || !verification.HashMatches {
		return verification, nil
	}

	plaintext, err := c.sealer.Open(ctx, sealed, doc.KeyVersion)
	if err != nil {
		return nil, err
	}
	verification.Decrypted = true
	verification.PlaintextSize = len(plaintext)
	cryptoDomain.Zero(plaintext)

	return verification, nil
}

func (c *completionUseCase) HandleCompletedEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	var payload completionEvent
	if err := event.DecodePayload(&payload); err != nil {
		return apperrors.Wrap(err, "failed to decode completion event")
	}

	token, err := c.tokenRepo.Get(ctx, payload.TokenID)
	if err != nil {
		return err
	}
	record, err := c.recordRepo.GetByTokenID(ctx, token.ID)
	if err != nil {
		return err
	}

	notice := notification.CompletionNotice{
		RecipientName: token.Recipient.Name,
		DocumentTitle: token.DocumentType.Title(),
		CaseNumber:    token.CaseNumber,
		SignedAt:      record.SignedAt,
	}

	switch {
	case token.Recipient.Has(domain.ContactMethodEmail):
		msg, err := notification.CompletionEmail(token.Recipient.Email, notice)
		if err != nil {
			return err
		}
		if _, err := c.sender.SendEmail(ctx, msg); err != nil {
			return apperrors.Wrap(err, "failed to send completion email")
		}
	case token.Recipient.Has(domain.ContactMethodSMS):
		if _, err := c.sender.SendSMS(ctx, notification.CompletionSMS(token.Recipient.Phone, notice)); err != nil {
			return apperrors.Wrap(err, "failed to send completion sms")
		}
	}

	if c.config.NotifyEmail == "" {
		return nil
	}
	msg, err := notification.CompletionEmail(c.config.NotifyEmail, notice)
	if err != nil {
		return err
	}
	msg.Subject = fmt.Sprintf("[%s] %s", payload.DocumentID, msg.Subject)
	if _, err := c.sender.SendEmail(ctx, msg); err != nil {
		return apperrors.Wrap(err, "failed to send completion copy")
	}
	return nil
}

// IntegrityHash is the hex SHA-256 of a sealed document.
func IntegrityHash(sealed []byte) string {
	sum := sha256.Sum256(sealed)
	return hex.EncodeToString(sum[:])
}
