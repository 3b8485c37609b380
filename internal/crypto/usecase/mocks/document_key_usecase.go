// Package mocks provides testify mocks of the crypto use cases.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
)

// MockDocumentKeyUseCase is a mock of usecase.DocumentKeyUseCase.
type MockDocumentKeyUseCase struct {
	mock.Mock
}

// NewMockDocumentKeyUseCase returns a mock whose expectations are asserted when the test ends.
func NewMockDocumentKeyUseCase(t *testing.T) *MockDocumentKeyUseCase {
	m := &MockDocumentKeyUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDocumentKeyUseCase) Create(ctx context.Context) (*cryptoDomain.DocumentKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.DocumentKey), args.Error(1)
}

func (m *MockDocumentKeyUseCase) List(ctx context.Context) ([]*cryptoDomain.DocumentKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.DocumentKey), args.Error(1)
}

func (m *MockDocumentKeyUseCase) Seal(
	ctx context.Context,
	payload []byte,
	alg cryptoDomain.Algorithm,
) ([]byte, uint, error) {
	args := m.Called(ctx, payload, alg)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).(uint), args.Error(2)
}

func (m *MockDocumentKeyUseCase) Open(ctx context.Context, sealed []byte, keyVersion uint) ([]byte, error) {
	args := m.Called(ctx, sealed, keyVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
