package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/recoverydesk/esign/internal/database"
	apperrors "github.com/recoverydesk/esign/internal/errors"
	"github.com/recoverydesk/esign/internal/signature/domain"
)

const documentColumns = `id, case_id, token_id, storage_path, encryption_algorithm, key_version,
	integrity_hash, size, created_at`

// PostgreSQLDocumentRepository persists generated document metadata in PostgreSQL.
type PostgreSQLDocumentRepository struct {
	db *sql.DB
}

// NewPostgreSQLDocumentRepository creates a new PostgreSQL document repository.
func NewPostgreSQLDocumentRepository(db *sql.DB) *PostgreSQLDocumentRepository {
	return &PostgreSQLDocumentRepository{db: db}
}

// Create inserts document metadata. A token holds at most one document.
func (p *PostgreSQLDocumentRepository) Create(ctx context.Context, doc *domain.GeneratedDocument) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO generated_documents (` + documentColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.CaseID,
		doc.TokenID,
		doc.StoragePath,
		doc.EncryptionAlgorithm,
		doc.KeyVersion,
		doc.IntegrityHash,
		doc.Size,
		doc.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDocumentExists
		}
		return apperrors.Wrap(err, "failed to create generated document")
	}
	return nil
}

// Get retrieves document metadata by ID.
func (p *PostgreSQLDocumentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.GeneratedDocument, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + documentColumns + ` FROM generated_documents WHERE id = $1`

	return p.scanOne(querier.QueryRowContext(ctx, query, id))
}

// GetByTokenID retrieves the document produced for a token.
func (p *PostgreSQLDocumentRepository) GetByTokenID(
	ctx context.Context,
	tokenID string,
) (*domain.GeneratedDocument, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + documentColumns + ` FROM generated_documents WHERE token_id = $1`

	return p.scanOne(querier.QueryRowContext(ctx, query, tokenID))
}

// ListByCase returns every document of a case, newest first.
func (p *PostgreSQLDocumentRepository) ListByCase(
	ctx context.Context,
	caseID string,
) ([]*domain.GeneratedDocument, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + documentColumns + ` FROM generated_documents WHERE case_id = $1 ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list generated documents")
	}
	defer rows.Close() //nolint:errcheck

	docs := make([]*domain.GeneratedDocument, 0)
	for rows.Next() {
		var doc domain.GeneratedDocument
		if err := scanDocument(rows, &doc, &doc.ID); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan generated document")
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate generated documents")
	}
	return docs, nil
}

func (p *PostgreSQLDocumentRepository) scanOne(row *sql.Row) (*domain.GeneratedDocument, error) {
	var doc domain.GeneratedDocument
	if err := scanDocument(row, &doc, &doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get generated document")
	}
	return &doc, nil
}

// scanDocument scans into doc, reading the id column into id so each driver can
// supply its own UUID representation.
func scanDocument(row rowScanner, doc *domain.GeneratedDocument, id any) error {
	return row.Scan(
		id,
		&doc.CaseID,
		&doc.TokenID,
		&doc.StoragePath,
		&doc.EncryptionAlgorithm,
		&doc.KeyVersion,
		&doc.IntegrityHash,
		&doc.Size,
		&doc.CreatedAt,
	)
}
