package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/metrics"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

const metricsDomain = "signature"

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// tokenUseCaseWithMetrics decorates TokenUseCase with metrics instrumentation.
type tokenUseCaseWithMetrics struct {
	next    TokenUseCase
	metrics metrics.BusinessMetrics
}

// NewTokenUseCaseWithMetrics wraps a TokenUseCase with metrics recording.
func NewTokenUseCaseWithMetrics(useCase TokenUseCase, m metrics.BusinessMetrics) TokenUseCase {
	return &tokenUseCaseWithMetrics{next: useCase, metrics: m}
}

func (t *tokenUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := statusOf(err)
	t.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	t.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// Issue records metrics for token issuance.
func (t *tokenUseCaseWithMetrics) Issue(ctx context.Context, input IssueInput) (*domain.Token, error) {
	start := time.Now()
	token, err := t.next.Issue(ctx, input)
	t.record(ctx, "token_issue", start, err)
	if err == nil {
		t.metrics.RecordTransition(ctx, "", string(domain.StatusPending))
	}
	return token, err
}

func (t *tokenUseCaseWithMetrics) HasPendingToken(
	ctx context.Context,
	caseID string,
	documentType domain.DocumentType,
) (bool, error) {
	return t.next.HasPendingToken(ctx, caseID, documentType)
}

func (t *tokenUseCaseWithMetrics) UpdateFormLink(ctx context.Context, tokenID, link string) error {
	start := time.Now()
	err := t.next.UpdateFormLink(ctx, tokenID, link)
	t.record(ctx, "form_link_update", start, err)
	return err
}

func (t *tokenUseCaseWithMetrics) Get(ctx context.Context, tokenID string) (*domain.Token, error) {
	return t.next.Get(ctx, tokenID)
}

func (t *tokenUseCaseWithMetrics) ListByCase(ctx context.Context, caseID string) ([]*domain.Token, error) {
	return t.next.ListByCase(ctx, caseID)
}

// Validate records metrics for portal token validation.
func (t *tokenUseCaseWithMetrics) Validate(
	ctx context.Context,
	tokenID string,
) (*domain.Token, domain.TokenState, error) {
	start := time.Now()
	token, state, err := t.next.Validate(ctx, tokenID)
	t.record(ctx, "token_validate", start, err)
	return token, state, err
}

// ExpireOverdue records metrics for reaper runs and counts each expiry.
func (t *tokenUseCaseWithMetrics) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	count, err := t.next.ExpireOverdue(ctx, limit)
	t.record(ctx, "token_expire", start, err)
	for i := 0; i < count; i++ {
		t.metrics.RecordTransition(ctx, "active", string(domain.StatusExpired))
	}
	return count, err
}

// dispatchUseCaseWithMetrics decorates DispatchUseCase with metrics instrumentation.
type dispatchUseCaseWithMetrics struct {
	next    DispatchUseCase
	metrics metrics.BusinessMetrics
}

// NewDispatchUseCaseWithMetrics wraps a DispatchUseCase with metrics recording.
func NewDispatchUseCaseWithMetrics(useCase DispatchUseCase, m metrics.BusinessMetrics) DispatchUseCase {
	return &dispatchUseCaseWithMetrics{next: useCase, metrics: m}
}

// Send records metrics for notification delivery.
func (d *dispatchUseCaseWithMetrics) Send(
	ctx context.Context,
	tokenID string,
	method domain.ContactMethod,
	actor auditDomain.Actor,
) (*domain.DeliveryResult, error) {
	start := time.Now()
	result, err := d.next.Send(ctx, tokenID, method, actor)

	status := statusOf(err)
	operation := "notification_send_" + string(method)
	d.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	d.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)

	return result, err
}

// completionUseCaseWithMetrics decorates CompletionUseCase with metrics instrumentation.
type completionUseCaseWithMetrics struct {
	next    CompletionUseCase
	metrics metrics.BusinessMetrics
}

// NewCompletionUseCaseWithMetrics wraps a CompletionUseCase with metrics recording.
func NewCompletionUseCaseWithMetrics(useCase CompletionUseCase, m metrics.BusinessMetrics) CompletionUseCase {
	return &completionUseCaseWithMetrics{next: useCase, metrics: m}
}

func (c *completionUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := statusOf(err)
	c.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	c.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

func (c *completionUseCaseWithMetrics) MarkAccessed(
	ctx context.Context,
	tokenID string,
	actor auditDomain.Actor,
) (*domain.Token, error) {
	start := time.Now()
	token, err := c.next.MarkAccessed(ctx, tokenID, actor)
	c.record(ctx, "form_access", start, err)
	return token, err
}

// HandleSubmission records metrics for completions, counting duplicates separately.
func (c *completionUseCaseWithMetrics) HandleSubmission(
	ctx context.Context,
	submission *domain.Submission,
) (*domain.CompletionResult, error) {
	start := time.Now()
	result, err := c.next.HandleSubmission(ctx, submission)

	operation := "submission_handle"
	if err == nil && result.Duplicate {
		operation = "submission_duplicate"
	}
	c.record(ctx, operation, start, err)
	if err == nil && !result.Duplicate {
		c.metrics.RecordTransition(ctx, "active", string(domain.StatusCompleted))
	}
	return result, err
}

func (c *completionUseCaseWithMetrics) RetryGeneration(
	ctx context.Context,
	tokenID string,
	actor auditDomain.Actor,
) (*domain.CompletionResult, error) {
	start := time.Now()
	result, err := c.next.RetryGeneration(ctx, tokenID, actor)
	c.record(ctx, "generation_retry", start, err)
	return result, err
}

func (c *completionUseCaseWithMetrics) VerifyDocument(
	ctx context.Context,
	documentID uuid.UUID,
	decrypt bool,
) (*DocumentVerification, error) {
	start := time.Now()
	verification, err := c.next.VerifyDocument(ctx, documentID, decrypt)
	c.record(ctx, "document_verify", start, err)
	return verification, err
}

func (c *completionUseCaseWithMetrics) HandleCompletedEvent(
	ctx context.Context,
	event *outboxDomain.OutboxEvent,
) error {
	start := time.Now()
	err := c.next.HandleCompletedEvent(ctx, event)
	c.record(ctx, "completion_notify", start, err)
	return err
}
