package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
)

// MySQLDocumentKeyRepository stores document keys in MySQL with binary UUIDs.
type MySQLDocumentKeyRepository struct {
	db *sql.DB
}

// NewMySQLDocumentKeyRepository creates a new MySQL document key repository.
func NewMySQLDocumentKeyRepository(db *sql.DB) *MySQLDocumentKeyRepository {
	return &MySQLDocumentKeyRepository{db: db}
}

// Create inserts a new key version. Versions are unique.
func (m *MySQLDocumentKeyRepository) Create(ctx context.Context, key *cryptoDomain.DocumentKey) error {
	querier := database.GetTx(ctx, m.db)

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal document key id")
	}

	query := `INSERT INTO document_keys (` + documentKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		key.Version,
		key.Algorithm,
		key.PublicKey,
		key.EncryptedPrivateKey,
		key.KMSKeyID,
		key.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrDocumentKeyExists
		}
		return apperrors.Wrap(err, "failed to create document key")
	}
	return nil
}

// GetByVersion returns a specific key version.
func (m *MySQLDocumentKeyRepository) GetByVersion(
	ctx context.Context,
	version uint,
) (*cryptoDomain.DocumentKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + documentKeyColumns + ` FROM document_keys WHERE version = ?`

	return scanOneDocumentKey(querier.QueryRowContext(ctx, query, version), scanMySQLDocumentKey)
}

// GetLatest returns the highest key version, which is the active one.
func (m *MySQLDocumentKeyRepository) GetLatest(ctx context.Context) (*cryptoDomain.DocumentKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + documentKeyColumns + ` FROM document_keys ORDER BY version DESC LIMIT 1`

	return scanOneDocumentKey(querier.QueryRowContext(ctx, query), scanMySQLDocumentKey)
}

// List returns every key version, newest first.
func (m *MySQLDocumentKeyRepository) List(ctx context.Context) ([]*cryptoDomain.DocumentKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + documentKeyColumns + ` FROM document_keys ORDER BY version DESC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list document keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]*cryptoDomain.DocumentKey, 0)
	for rows.Next() {
		var key cryptoDomain.DocumentKey
		if err := scanMySQLDocumentKey(rows, &key); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan document key")
		}
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate document keys")
	}
	return keys, nil
}

func scanMySQLDocumentKey(row rowScanner, key *cryptoDomain.DocumentKey) error {
	var id []byte
	if err := scanDocumentKey(row, key, &id); err != nil {
		return err
	}
	parsed, err := uuid.FromBytes(id)
	if err != nil {
		return apperrors.Wrap(err, "failed to parse document key id")
	}
	key.ID = parsed
	return nil
}
