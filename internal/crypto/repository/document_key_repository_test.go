package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	"github.com/recoverydesk/esign/internal/testutil"
)

var (
	testNow              = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	documentKeyColumnSet = []string{
		"id", "version", "algorithm", "public_key", "encrypted_private_key", "kms_key_id", "created_at",
	}
)

func newTestDocumentKey(version uint) *cryptoDomain.DocumentKey {
	return &cryptoDomain.DocumentKey{
		ID:                  uuid.Must(uuid.NewV7()),
		Version:             version,
		Algorithm:           cryptoDomain.KeyAlgorithm,
		PublicKey:           make([]byte, 32),
		EncryptedPrivateKey: []byte("wrapped-private-key"),
		KMSKeyID:            "base64key://",
		CreatedAt:           testNow,
	}
}

func documentKeyRows(id func(*cryptoDomain.DocumentKey) any, keys ...*cryptoDomain.DocumentKey) *sqlmock.Rows {
	rows := sqlmock.NewRows(documentKeyColumnSet)
	for _, key := range keys {
		rows.AddRow(
			id(key), int64(key.Version), key.Algorithm, key.PublicKey, key.EncryptedPrivateKey,
			key.KMSKeyID, key.CreatedAt,
		)
	}
	return rows
}

func postgresID(key *cryptoDomain.DocumentKey) any { return key.ID.String() }

func mysqlID(key *cryptoDomain.DocumentKey) any {
	b, _ := key.ID.MarshalBinary()
	return b
}

func TestPostgreSQLDocumentKeyRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewPostgreSQLDocumentKeyRepository(db)
		key := newTestDocumentKey(1)

		mock.ExpectExec("INSERT INTO document_keys").
			WithArgs(key.ID, int64(1), cryptoDomain.KeyAlgorithm, key.PublicKey, key.EncryptedPrivateKey,
				"base64key://", testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, key))
	})

	t.Run("Error_VersionExists", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewPostgreSQLDocumentKeyRepository(db)

		mock.ExpectExec("INSERT INTO document_keys").WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, newTestDocumentKey(1))
		assert.ErrorIs(t, err, cryptoDomain.ErrDocumentKeyExists)
	})

	t.Run("Error_Database", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewPostgreSQLDocumentKeyRepository(db)

		mock.ExpectExec("INSERT INTO document_keys").WillReturnError(errors.New("connection reset"))

		err := repo.Create(ctx, newTestDocumentKey(1))
		assert.ErrorContains(t, err, "failed to create document key")
	})
}

func TestPostgreSQLDocumentKeyRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ByVersion", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewPostgreSQLDocumentKeyRepository(db)
		expected := newTestDocumentKey(2)

		mock.ExpectQuery("SELECT (.+) FROM document_keys WHERE version = \\$1").
			WithArgs(int64(2)).
			WillReturnRows(documentKeyRows(postgresID, expected))

		key, err := repo.GetByVersion(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, expected, key)
	})

	t.Run("Success_Latest", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewPostgreSQLDocumentKeyRepository(db)
		expected := newTestDocumentKey(5)

		mock.ExpectQuery("SELECT (.+) FROM document_keys ORDER BY version DESC LIMIT 1").
			WillReturnRows(documentKeyRows(postgresID, expected))

		key, err := repo.GetLatest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint(5), key.Version)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewPostgreSQLDocumentKeyRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM document_keys").WillReturnRows(sqlmock.NewRows(documentKeyColumnSet))

		_, err := repo.GetLatest(ctx)
		assert.ErrorIs(t, err, cryptoDomain.ErrDocumentKeyNotFound)
	})
}

func TestPostgreSQLDocumentKeyRepository_List(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewPostgreSQLDocumentKeyRepository(db)
	k2, k1 := newTestDocumentKey(2), newTestDocumentKey(1)

	mock.ExpectQuery("SELECT (.+) FROM document_keys ORDER BY version DESC").
		WillReturnRows(documentKeyRows(postgresID, k2, k1))

	keys, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, uint(2), keys[0].Version)
	assert.Equal(t, k1.ID, keys[1].ID)
}

func TestMySQLDocumentKeyRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLDocumentKeyRepository(db)
		key := newTestDocumentKey(1)

		mock.ExpectExec("INSERT INTO document_keys").
			WithArgs(mysqlID(key), int64(1), cryptoDomain.KeyAlgorithm, key.PublicKey, key.EncryptedPrivateKey,
				"base64key://", testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, key))
	})

	t.Run("Error_VersionExists", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLDocumentKeyRepository(db)

		mock.ExpectExec("INSERT INTO document_keys").WillReturnError(&mysql.MySQLError{Number: 1062})

		err := repo.Create(ctx, newTestDocumentKey(1))
		assert.ErrorIs(t, err, cryptoDomain.ErrDocumentKeyExists)
	})
}

func TestMySQLDocumentKeyRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ByVersion", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLDocumentKeyRepository(db)
		expected := newTestDocumentKey(3)

		mock.ExpectQuery("SELECT (.+) FROM document_keys WHERE version = \\?").
			WithArgs(int64(3)).
			WillReturnRows(documentKeyRows(mysqlID, expected))

		key, err := repo.GetByVersion(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, expected, key)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLDocumentKeyRepository(db)

		mock.ExpectQuery("SELECT (.+) FROM document_keys").WillReturnRows(sqlmock.NewRows(documentKeyColumnSet))

		_, err := repo.GetByVersion(ctx, 9)
		assert.ErrorIs(t, err, cryptoDomain.ErrDocumentKeyNotFound)
	})

	t.Run("Error_BadID", func(t *testing.T) {
		db, mock := testutil.NewMockDB(t)
		repo := NewMySQLDocumentKeyRepository(db)
		key := newTestDocumentKey(1)

		mock.ExpectQuery("SELECT (.+) FROM document_keys").
			WillReturnRows(documentKeyRows(func(*cryptoDomain.DocumentKey) any { return []byte{1, 2} }, key))

		_, err := repo.GetLatest(ctx)
		assert.ErrorContains(t, err, "failed to parse document key id")
	})
}

func TestMySQLDocumentKeyRepository_List(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	repo := NewMySQLDocumentKeyRepository(db)
	k1 := newTestDocumentKey(1)

	mock.ExpectQuery("SELECT (.+) FROM document_keys ORDER BY version DESC").
		WillReturnRows(documentKeyRows(mysqlID, k1))

	keys, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, k1.ID, keys[0].ID)
}
