// Package repository persists document key versions in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"

	cryptoDomain "github.com/recoverydesk/esign/internal/crypto/domain"
	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
)

const documentKeyColumns = `id, version, algorithm, public_key, encrypted_private_key, kms_key_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLDocumentKeyRepository stores document keys in PostgreSQL.
type PostgreSQLDocumentKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLDocumentKeyRepository creates a new PostgreSQL document key repository.
func NewPostgreSQLDocumentKeyRepository(db *sql.DB) *PostgreSQLDocumentKeyRepository {
	return &PostgreSQLDocumentKeyRepository{db: db}
}

// Create inserts a new key version. Versions are unique.
func (p *PostgreSQLDocumentKeyRepository) Create(ctx context.Context, key *cryptoDomain.DocumentKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO document_keys (` + documentKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
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
func (p *PostgreSQLDocumentKeyRepository) GetByVersion(
	ctx context.Context,
	version uint,
) (*cryptoDomain.DocumentKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + documentKeyColumns + ` FROM document_keys WHERE version = $1`

	return scanOneDocumentKey(querier.QueryRowContext(ctx, query, version), scanPostgreSQLDocumentKey)
}

// GetLatest returns the highest key version, which is the active one.
func (p *PostgreSQLDocumentKeyRepository) GetLatest(ctx context.Context) (*cryptoDomain.DocumentKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + documentKeyColumns + ` FROM document_keys ORDER BY version DESC LIMIT 1`

	return scanOneDocumentKey(querier.QueryRowContext(ctx, query), scanPostgreSQLDocumentKey)
}

// List returns every key version, newest first.
func (p *PostgreSQLDocumentKeyRepository) List(ctx context.Context) ([]*cryptoDomain.DocumentKey, error) {
	querier := database.GetTx(ctx, p.db)

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
		if err := scanPostgreSQLDocumentKey(rows, &key); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan document key")
		}
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate document keys")
	}
	return keys, nil
}

func scanOneDocumentKey(
	row *sql.Row,
	scan func(rowScanner, *cryptoDomain.DocumentKey) error,
) (*cryptoDomain.DocumentKey, error) {
	var key cryptoDomain.DocumentKey
	if err := scan(row, &key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrDocumentKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get document key")
	}
	return &key, nil
}

func scanPostgreSQLDocumentKey(row rowScanner, key *cryptoDomain.DocumentKey) error {
	return scanDocumentKey(row, key, &key.ID)
}

// scanDocumentKey reads the id column into id so each driver can supply its
// own UUID representation.
func scanDocumentKey(row rowScanner, key *cryptoDomain.DocumentKey, id any) error {
	return row.Scan(
		id,
		&key.Version,
		&key.Algorithm,
		&key.PublicKey,
		&key.EncryptedPrivateKey,
		&key.KMSKeyID,
		&key.CreatedAt,
	)
}
