// Package mocks provides test doubles for the database package.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockTxManager runs the transaction function inline. Set up expectations with
// On("WithTx", ...) and Return(nil) to have fn invoked, or Return(err) to fail
// without calling it.
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks database.TxManager.WithTx.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// NewPassthroughTxManager returns a MockTxManager that accepts any call.
func NewPassthroughTxManager() *MockTxManager {
	m := &MockTxManager{}
	m.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	return m
}
