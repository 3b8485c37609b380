// Package mocks provides testify mocks of the signature use cases.
package mocks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/signature/usecase"
)

// MockTokenUseCase is a mock of usecase.TokenUseCase.
type MockTokenUseCase struct {
	mock.Mock
}

// NewMockTokenUseCase returns a mock whose expectations are asserted when the test ends.
func NewMockTokenUseCase(t *testing.T) *MockTokenUseCase {
	m := &MockTokenUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenUseCase) Issue(ctx context.Context, input usecase.IssueInput) (*domain.Token, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

func (m *MockTokenUseCase) HasPendingToken(
	ctx context.Context,
	caseID string,
	documentType domain.DocumentType,
) (bool, error) {
	args := m.Called(ctx, caseID, documentType)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenUseCase) UpdateFormLink(ctx context.Context, tokenID, link string) error {
	return m.Called(ctx, tokenID, link).Error(0)
}

func (m *MockTokenUseCase) Get(ctx context.Context, tokenID string) (*domain.Token, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

func (m *MockTokenUseCase) ListByCase(ctx context.Context, caseID string) ([]*domain.Token, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Token), args.Error(1)
}

func (m *MockTokenUseCase) Validate(ctx context.Context, tokenID string) (*domain.Token, domain.TokenState, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(domain.TokenState), args.Error(2)
	}
	return args.Get(0).(*domain.Token), args.Get(1).(domain.TokenState), args.Error(2)
}

func (m *MockTokenUseCase) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// MockDispatchUseCase is a mock of usecase.DispatchUseCase.
type MockDispatchUseCase struct {
	mock.Mock
}

// NewMockDispatchUseCase returns a mock whose expectations are asserted when the test ends.
func NewMockDispatchUseCase(t *testing.T) *MockDispatchUseCase {
	m := &MockDispatchUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDispatchUseCase) Send(
	ctx context.Context,
	tokenID string,
	method domain.ContactMethod,
	actor auditDomain.Actor,
) (*domain.DeliveryResult, error) {
	args := m.Called(ctx, tokenID, method, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryResult), args.Error(1)
}

// MockCompletionUseCase is a mock of usecase.CompletionUseCase.
type MockCompletionUseCase struct {
	mock.Mock
}

// NewMockCompletionUseCase returns a mock whose expectations are asserted when the test ends.
func NewMockCompletionUseCase(t *testing.T) *MockCompletionUseCase {
	m := &MockCompletionUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCompletionUseCase) MarkAccessed(
	ctx context.Context,
	tokenID string,
	actor auditDomain.Actor,
) (*domain.Token, error) {
	args := m.Called(ctx, tokenID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Token), args.Error(1)
}

func (m *MockCompletionUseCase) HandleSubmission(
	ctx context.Context,
	submission *domain.Submission,
) (*domain.CompletionResult, error) {
	args := m.Called(ctx, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionResult), args.Error(1)
}

func (m *MockCompletionUseCase) RetryGeneration(
	ctx context.Context,
	tokenID string,
	actor auditDomain.Actor,
) (*domain.CompletionResult, error) {
	args := m.Called(ctx, tokenID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompletionResult), args.Error(1)
}

func (m *MockCompletionUseCase) VerifyDocument(
	ctx context.Context,
	documentID uuid.UUID,
	decrypt bool,
) (*usecase.DocumentVerification, error) {
	args := m.Called(ctx, documentID, decrypt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DocumentVerification), args.Error(1)
}

func (m *MockCompletionUseCase) HandleCompletedEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}
