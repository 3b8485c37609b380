package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverydesk/esign/internal/signature/domain"
	"github.com/recoverydesk/esign/internal/testutil"
)

func TestMySQLTokenRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLTokenRepository(db)

		mock.ExpectExec("INSERT INTO signature_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, newTestToken(t)))
	})

	t.Run("Error_DuplicateActiveKey", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLTokenRepository(db)

		mock.ExpectExec("INSERT INTO signature_tokens").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'case-1:claims'"})

		err := repo.Create(ctx, newTestToken(t))
		assert.ErrorIs(t, err, domain.ErrPendingTokenExists)
	})
}

func TestMySQLTokenRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLTokenRepository(db)
		expected := newTestToken(t)

		mock.ExpectQuery("SELECT (.+) FROM signature_tokens WHERE id = \\?").
			WithArgs(expected.ID).
			WillReturnRows(tokenRows(t, expected))

		token, err := repo.Get(ctx, expected.ID)
		require.NoError(t, err)
		assert.Equal(t, expected.CaseNumber, token.CaseNumber)
		assert.Equal(t, domain.StatusPending, token.Status)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLTokenRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM signature_tokens").WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	})
}

func TestMySQLTokenRepository_GetActive(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewMySQLTokenRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM signature_tokens WHERE active_key = \\?").
		WithArgs("case-1:claims").
		WillReturnRows(tokenRows(t, newTestToken(t)))

	token, err := repo.GetActive(context.Background(), "case-1", domain.DocumentTypeClaims)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token.ID)
}

func TestMySQLTokenRepository_ListOverdue(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewMySQLTokenRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM signature_tokens (.+) LIMIT \\?").
		WithArgs(testNow, 10).
		WillReturnRows(tokenRows(t))

	tokens, err := repo.ListOverdue(context.Background(), testNow, 10)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestMySQLTokenRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLTokenRepository(db)

		mock.ExpectExec("UPDATE signature_tokens").
			WithArgs("sent", testNow, nil, nil, "tok-abc", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.TransitionStatus(ctx, "tok-abc", domain.StatusPending, domain.StatusSent, testNow))
	})

	t.Run("Error_LostRace", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLTokenRepository(db)

		mock.ExpectExec("UPDATE signature_tokens").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.TransitionStatus(ctx, "tok-abc", domain.StatusSent, domain.StatusCompleted, testNow)
		assert.ErrorIs(t, err, domain.ErrStatusConflict)
	})

	t.Run("Error_Database", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLTokenRepository(db)

		mock.ExpectExec("UPDATE signature_tokens").WillReturnError(errors.New("lock wait timeout"))

		err := repo.TransitionStatus(ctx, "tok-abc", domain.StatusSent, domain.StatusCompleted, testNow)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrStatusConflict)
	})
}

func TestMySQLTokenRepository_UpdateFormLink(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewMySQLTokenRepository(db)

	mock.ExpectExec("UPDATE signature_tokens SET form_link = \\?").
		WithArgs("https://example.com/f", testNow, "tok-abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateFormLink(context.Background(), "tok-abc", "https://example.com/f", testNow))
}
