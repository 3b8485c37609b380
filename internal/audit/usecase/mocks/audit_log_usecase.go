// Package mocks provides testify mocks of the audit use cases.
package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
)

// MockAuditLogUseCase is a mock of usecase.AuditLogUseCase.
type MockAuditLogUseCase struct {
	mock.Mock
}

// NewMockAuditLogUseCase returns a mock whose expectations are asserted when the test ends.
func NewMockAuditLogUseCase(t *testing.T) *MockAuditLogUseCase {
	m := &MockAuditLogUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAuditLogUseCase) Record(
	ctx context.Context,
	caseID, tokenID string,
	action auditDomain.Action,
	actor auditDomain.Actor,
	metadata map[string]any,
) (*auditDomain.AuditLog, error) {
	args := m.Called(ctx, caseID, tokenID, action, actor, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.AuditLog), args.Error(1)
}

func (m *MockAuditLogUseCase) Append(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	return m.Called(ctx, auditLog).Error(0)
}

func (m *MockAuditLogUseCase) List(
	ctx context.Context,
	filter auditDomain.Filter,
) ([]*auditDomain.AuditLog, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.AuditLog), args.Error(1)
}

func (m *MockAuditLogUseCase) Verify(
	ctx context.Context,
	from, to *time.Time,
) (*auditDomain.VerifyReport, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auditDomain.VerifyReport), args.Error(1)
}

func (m *MockAuditLogUseCase) HandleAppendEvent(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}
