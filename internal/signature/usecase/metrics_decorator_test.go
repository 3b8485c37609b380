package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/usecase"
	usecaseMocks "github.com/recoverydesk/esign/internal/signature/usecase/mocks"
)

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordTransition(ctx context.Context, from, to string) {
	m.Called(ctx, from, to)
}

func expectOperation(ctx context.Context, m *mockBusinessMetrics, operation, status string) {
	m.On("RecordOperation", ctx, "signature", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "signature", operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

func TestTokenUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Issue success", func(t *testing.T) {
		mockNext := usecaseMocks.NewMockTokenUseCase(t)
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewTokenUseCaseWithMetrics(mockNext, mockMetrics)

		input := usecase.IssueInput{CaseID: "C-1"}
		token := &domain.Token{ID: "tok", Status: domain.StatusPending}

		mockNext.On("Issue", ctx, input).Return(token, nil).Once()
		expectOperation(ctx, mockMetrics, "token_issue", "success")
		mockMetrics.On("RecordTransition", ctx, "", "pending").Return().Once()

		res, err := uc.Issue(ctx, input)
		assert.NoError(t, err)
		assert.Equal(t, token, res)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("Issue error", func(t *testing.T) {
		mockNext := usecaseMocks.NewMockTokenUseCase(t)
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewTokenUseCaseWithMetrics(mockNext, mockMetrics)

		input := usecase.IssueInput{CaseID: "C-1"}
		mockNext.On("Issue", ctx, input).Return(nil, domain.ErrPendingTokenExists).Once()
		expectOperation(ctx, mockMetrics, "token_issue", "error")

		res, err := uc.Issue(ctx, input)
		assert.ErrorIs(t, err, domain.ErrPendingTokenExists)
		assert.Nil(t, res)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("ExpireOverdue counts transitions", func(t *testing.T) {
		mockNext := usecaseMocks.NewMockTokenUseCase(t)
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewTokenUseCaseWithMetrics(mockNext, mockMetrics)

		mockNext.On("ExpireOverdue", ctx, 100).Return(2, nil).Once()
		expectOperation(ctx, mockMetrics, "token_expire", "success")
		mockMetrics.On("RecordTransition", ctx, "active", "expired").Return().Twice()

		count, err := uc.ExpireOverdue(ctx, 100)
		assert.NoError(t, err)
		assert.Equal(t, 2, count)
		mockMetrics.AssertExpectations(t)
	})
}

func TestDispatchUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	mockNext := usecaseMocks.NewMockDispatchUseCase(t)
	mockMetrics := &mockBusinessMetrics{}
	uc := usecase.NewDispatchUseCaseWithMetrics(mockNext, mockMetrics)

	mockNext.On("Send", ctx, "tok", domain.ContactMethodSMS, auditDomain.Actor{}).
		Return(nil, domain.ErrDeliveryFailed).
		Once()
	expectOperation(ctx, mockMetrics, "notification_send_sms", "error")

	_, err := uc.Send(ctx, "tok", domain.ContactMethodSMS, auditDomain.Actor{})
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	mockMetrics.AssertExpectations(t)
}

func TestCompletionUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	submission := &domain.Submission{Token: "tok"}

	t.Run("HandleSubmission success", func(t *testing.T) {
		mockNext := usecaseMocks.NewMockCompletionUseCase(t)
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewCompletionUseCaseWithMetrics(mockNext, mockMetrics)

		result := &domain.CompletionResult{Token: &domain.Token{ID: "tok"}}
		mockNext.On("HandleSubmission", ctx, submission).Return(result, nil).Once()
		expectOperation(ctx, mockMetrics, "submission_handle", "success")
		mockMetrics.On("RecordTransition", ctx, "active", "completed").Return().Once()

		res, err := uc.HandleSubmission(ctx, submission)
		assert.NoError(t, err)
		assert.Equal(t, result, res)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("HandleSubmission duplicate", func(t *testing.T) {
		mockNext := usecaseMocks.NewMockCompletionUseCase(t)
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewCompletionUseCaseWithMetrics(mockNext, mockMetrics)

		result := &domain.CompletionResult{Duplicate: true}
		mockNext.On("HandleSubmission", ctx, submission).Return(result, nil).Once()
		expectOperation(ctx, mockMetrics, "submission_duplicate", "success")

		_, err := uc.HandleSubmission(ctx, submission)
		assert.NoError(t, err)
		mockMetrics.AssertExpectations(t)
	})

	t.Run("HandleSubmission error", func(t *testing.T) {
		mockNext := usecaseMocks.NewMockCompletionUseCase(t)
		mockMetrics := &mockBusinessMetrics{}
		uc := usecase.NewCompletionUseCaseWithMetrics(mockNext, mockMetrics)

		mockNext.On("HandleSubmission", ctx, submission).Return(nil, errors.New("boom")).Once()
		expectOperation(ctx, mockMetrics, "submission_handle", "error")

		_, err := uc.HandleSubmission(ctx, submission)
		assert.Error(t, err)
		mockMetrics.AssertExpectations(t)
	})
}
