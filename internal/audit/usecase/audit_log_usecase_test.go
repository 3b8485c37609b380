package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/recoverydesk/esign/internal/audit/domain"
	"github.com/recoverydesk/esign/internal/audit/service"
	outboxDomain "github.com/recoverydesk/esign/internal/outbox/domain"
	"github.com/recoverydesk/esign/internal/retry"
	"github.com/recoverydesk/esign/internal/testutil"
)

type mockAuditLogRepository struct {
	mock.Mock
}

func (m *mockAuditLogRepository) Create(ctx context.Context, auditLog *auditDomain.AuditLog) error {
	return m.Called(ctx, auditLog).Error(0)
}

func (m *mockAuditLogRepository) List(
	ctx context.Context,
	filter auditDomain.Filter,
) ([]*auditDomain.AuditLog, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auditDomain.AuditLog), args.Error(1)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	return m.Called(ctx, eventType, payload).Error(0)
}

var testPolicy = retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func newTestSigner(t *testing.T) service.AuditSigner {
	t.Helper()
	signer, err := service.NewAuditSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return signer
}

func TestAuditLogUseCase_Record(t *testing.T) {
	ctx := context.Background()
	actor := auditDomain.Actor{IP: "203.0.113.9", UserAgent: "Mozilla/5.0"}

	t.Run("Success_Signed", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		signer := newTestSigner(t)
		uc := NewAuditLogUseCase(repo, signer, &mockEventPublisher{}, testPolicy, testutil.NewTestLogger())

		repo.On("Create", ctx, mock.AnythingOfType("*domain.AuditLog")).Return(nil).Once()

		entry, err := uc.Record(ctx, "C-1", "tok-1", auditDomain.ActionTokenIssued, actor,
			map[string]any{"document_type": "claims"})
		require.NoError(t, err)

		assert.Equal(t, "C-1", entry.CaseID)
		assert.Equal(t, "tok-1", entry.TokenID)
		assert.Equal(t, "203.0.113.9", entry.ActorIP)
		assert.True(t, entry.IsSigned)
		assert.Equal(t, entry.CreatedAt, entry.CreatedAt.Truncate(time.Microsecond))
		assert.NoError(t, signer.Verify(entry))
		repo.AssertExpectations(t)
	})

	t.Run("Success_Unsigned", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, nil, nil, testPolicy, testutil.NewTestLogger())

		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		entry, err := uc.Record(ctx, "C-1", "", auditDomain.ActionFormAccessed, actor, nil)
		require.NoError(t, err)
		assert.False(t, entry.IsSigned)
		assert.Nil(t, entry.Signature)
	})

	t.Run("Success_RetriedWrite", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, nil, &mockEventPublisher{}, testPolicy, testutil.NewTestLogger())

		repo.On("Create", ctx, mock.Anything).Return(errors.New("connection reset")).Once()
		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		_, err := uc.Record(ctx, "C-1", "tok-1", auditDomain.ActionNotificationSent, actor, nil)
		require.NoError(t, err)
		repo.AssertNumberOfCalls(t, "Create", 2)
	})

	t.Run("Error_DeferredToOutbox", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		publisher := &mockEventPublisher{}
		uc := NewAuditLogUseCase(repo, newTestSigner(t), publisher, testPolicy, testutil.NewTestLogger())

		repo.On("Create", ctx, mock.Anything).Return(errors.New("database is down")).Twice()
		publisher.On("Publish", ctx, outboxDomain.EventTypeAuditLogAppend, mock.AnythingOfType("*domain.AuditLog")).
			Return(nil).Once()

		entry, err := uc.Record(ctx, "C-1", "tok-1", auditDomain.ActionDocumentSigned, actor, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, auditDomain.ErrDeferred)
		assert.ErrorContains(t, err, "database is down")
		require.NotNil(t, entry)
		publisher.AssertExpectations(t)
	})

	t.Run("Error_DeferralFailed", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		publisher := &mockEventPublisher{}
		uc := NewAuditLogUseCase(repo, nil, publisher, testPolicy, testutil.NewTestLogger())

		repo.On("Create", ctx, mock.Anything).Return(errors.New("database is down")).Twice()
		publisher.On("Publish", ctx, mock.Anything, mock.Anything).Return(errors.New("outbox is down")).Once()

		entry, err := uc.Record(ctx, "C-1", "tok-1", auditDomain.ActionDocumentSigned, actor, nil)
		assert.Nil(t, entry)
		assert.NotErrorIs(t, err, auditDomain.ErrDeferred)
		assert.ErrorContains(t, err, "database is down")
		assert.ErrorContains(t, err, "outbox is down")
	})

	t.Run("Error_NoPublisher", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, nil, nil, retry.NoRetry, testutil.NewTestLogger())

		repo.On("Create", ctx, mock.Anything).Return(errors.New("database is down")).Once()

		_, err := uc.Record(ctx, "C-1", "tok-1", auditDomain.ActionTokenIssued, actor, nil)
		assert.EqualError(t, err, "failed to create audit log: database is down")
	})

	t.Run("Error_MissingCaseID", func(t *testing.T) {
		uc := NewAuditLogUseCase(&mockAuditLogRepository{}, nil, nil, testPolicy, testutil.NewTestLogger())

		_, err := uc.Record(ctx, "", "tok-1", auditDomain.ActionTokenIssued, actor, nil)
		assert.ErrorIs(t, err, auditDomain.ErrCaseIDRequired)
	})

	t.Run("Error_UnknownAction", func(t *testing.T) {
		uc := NewAuditLogUseCase(&mockAuditLogRepository{}, nil, nil, testPolicy, testutil.NewTestLogger())

		_, err := uc.Record(ctx, "C-1", "tok-1", auditDomain.Action("token_deleted"), actor, nil)
		assert.ErrorIs(t, err, auditDomain.ErrInvalidAction)
	})
}

func TestAuditLogUseCase_HandleAppendEvent(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)

	original := &auditDomain.AuditLog{
		ID:        uuid.Must(uuid.NewV7()),
		CaseID:    "C-1",
		TokenID:   "tok-1",
		Action:    auditDomain.ActionDocumentSigned,
		ActorIP:   "203.0.113.9",
		Metadata:  map[string]any{"document_id": "d-1", "key_version": 2},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	signature, err := signer.Sign(original)
	require.NoError(t, err)
	original.Signature = signature
	original.IsSigned = true

	event, err := outboxDomain.NewOutboxEvent(outboxDomain.EventTypeAuditLogAppend, original)
	require.NoError(t, err)

	t.Run("Success_SignatureSurvivesQueue", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, signer, nil, testPolicy, testutil.NewTestLogger())

		var stored *auditDomain.AuditLog
		repo.On("Create", ctx, mock.Anything).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*auditDomain.AuditLog) }).
			Return(nil).Once()

		require.NoError(t, uc.HandleAppendEvent(ctx, event))
		require.NotNil(t, stored)
		assert.Equal(t, original.ID, stored.ID)
		assert.True(t, stored.CreatedAt.Equal(original.CreatedAt))
		assert.NoError(t, signer.Verify(stored))
	})

	t.Run("Error_Repository", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, signer, nil, testPolicy, testutil.NewTestLogger())

		repo.On("Create", ctx, mock.Anything).Return(errors.New("still down")).Once()

		err := uc.HandleAppendEvent(ctx, event)
		assert.EqualError(t, err, "failed to append audit log: still down")
	})

	t.Run("Error_BadPayload", func(t *testing.T) {
		uc := NewAuditLogUseCase(&mockAuditLogRepository{}, signer, nil, testPolicy, testutil.NewTestLogger())

		bad := &outboxDomain.OutboxEvent{EventType: outboxDomain.EventTypeAuditLogAppend, Payload: "{"}
		assert.ErrorContains(t, uc.HandleAppendEvent(ctx, bad), "failed to decode audit log event")
	})
}

func TestAuditLogUseCase_List(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, nil, nil, testPolicy, testutil.NewTestLogger())
		filter := auditDomain.Filter{CaseID: "C-1", Limit: 50}

		repo.On("List", ctx, filter).Return([]*auditDomain.AuditLog{{CaseID: "C-1"}}, nil).Once()

		logs, err := uc.List(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	t.Run("Error_InvertedWindow", func(t *testing.T) {
		uc := NewAuditLogUseCase(&mockAuditLogRepository{}, nil, nil, testPolicy, testutil.NewTestLogger())
		from := time.Now()
		to := from.Add(-time.Hour)

		_, err := uc.List(ctx, auditDomain.Filter{CreatedAtFrom: &from, CreatedAtTo: &to})
		assert.ErrorIs(t, err, auditDomain.ErrInvalidTimeWindow)
	})
}

func TestAuditLogUseCase_Verify(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)

	signed := func(caseID string) *auditDomain.AuditLog {
		entry := &auditDomain.AuditLog{
			ID:        uuid.Must(uuid.NewV7()),
			CaseID:    caseID,
			Action:    auditDomain.ActionTokenIssued,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		sig, err := signer.Sign(entry)
		require.NoError(t, err)
		entry.Signature = sig
		entry.IsSigned = true
		return entry
	}

	t.Run("Success_Mixed", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, signer, nil, testPolicy, testutil.NewTestLogger())

		good := signed("C-1")
		tampered := signed("C-2")
		tampered.CaseID = "C-3"
		unsigned := &auditDomain.AuditLog{ID: uuid.Must(uuid.NewV7()), CaseID: "C-4"}

		repo.On("List", ctx, auditDomain.Filter{Limit: verifyPageSize}).
			Return([]*auditDomain.AuditLog{good, tampered, unsigned}, nil).Once()

		report, err := uc.Verify(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Total)
		assert.Equal(t, 1, report.Valid)
		assert.Equal(t, 1, report.Unsigned)
		assert.Equal(t, []uuid.UUID{tampered.ID}, report.Invalid)
		assert.False(t, report.Passed())
	})

	t.Run("Success_Paginates", func(t *testing.T) {
		repo := &mockAuditLogRepository{}
		uc := NewAuditLogUseCase(repo, signer, nil, testPolicy, testutil.NewTestLogger())

		full := make([]*auditDomain.AuditLog, verifyPageSize)
		for i := range full {
			full[i] = signed("C-1")
		}
		repo.On("List", ctx, auditDomain.Filter{Limit: verifyPageSize}).Return(full, nil).Once()
		repo.On("List", ctx, auditDomain.Filter{Limit: verifyPageSize, Offset: verifyPageSize}).
			Return([]*auditDomain.AuditLog{signed("C-2")}, nil).Once()

		report, err := uc.Verify(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, verifyPageSize+1, report.Total)
		assert.True(t, report.Passed())
		repo.AssertExpectations(t)
	})

	t.Run("Error_NoSigner", func(t *testing.T) {
		uc := NewAuditLogUseCase(&mockAuditLogRepository{}, nil, nil, testPolicy, testutil.NewTestLogger())

		_, err := uc.Verify(ctx, nil, nil)
		assert.EqualError(t, err, "audit signing key is not configured")
	})
}
